package frontmatter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("no frontmatter", func(t *testing.T) {
		raw, body, had, _, err := Split([]byte("# Title\n\nBody\n"))
		require.NoError(t, err)
		require.False(t, had)
		require.Nil(t, raw)
		require.Equal(t, "# Title\n\nBody\n", string(body))
	})

	t.Run("with frontmatter", func(t *testing.T) {
		raw, body, had, style, err := Split([]byte("---\ntitle: x\n---\n\n# Body\n"))
		require.NoError(t, err)
		require.True(t, had)
		require.Equal(t, "title: x\n", string(raw))
		require.Equal(t, "\n# Body\n", string(body))
		require.Equal(t, "\n", style.Newline)
	})

	t.Run("empty block", func(t *testing.T) {
		raw, body, had, _, err := Split([]byte("---\n---\nBody"))
		require.NoError(t, err)
		require.True(t, had)
		require.Empty(t, raw)
		require.Equal(t, "Body", string(body))
	})

	t.Run("crlf", func(t *testing.T) {
		raw, body, had, style, err := Split([]byte("---\r\na: 1\r\n---\r\nBody\r\n"))
		require.NoError(t, err)
		require.True(t, had)
		require.Equal(t, "a: 1\r\n", string(raw))
		require.Equal(t, "Body\r\n", string(body))
		require.Equal(t, "\r\n", style.Newline)
	})

	t.Run("missing closing delimiter", func(t *testing.T) {
		_, _, _, _, err := Split([]byte("---\ntitle: x\nBody\n"))
		require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	})
}

func TestRewrite_KeepsBody(t *testing.T) {
	in := []byte("---\npublish_slug: hello\n---\n\nHello [[World]]\n")
	out, err := Rewrite(in, map[string]any{"publish_slug": "hello", "ghost_id": "abc"})
	require.NoError(t, err)

	fields, body, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, "abc", fields["ghost_id"])
	require.Equal(t, "hello", fields["publish_slug"])
	require.Equal(t, "\nHello [[World]]\n", string(body))
}

func TestParse_NonStringKeys(t *testing.T) {
	fields, _, err := Parse([]byte("---\nratings:\n  2023: 5\n  true: yes\nhistory:\n  - 1: one\n---\nbody\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"2023": 5, "true": "yes"}, fields["ratings"])
	require.Equal(t, []any{map[string]any{"1": "one"}}, fields["history"])

	_, err = json.Marshal(fields)
	require.NoError(t, err)
}

func TestSerializeYAML_SortedKeys(t *testing.T) {
	a := map[string]any{}
	a["zeta"] = 1
	a["alpha"] = []any{"x", "y"}
	a["mid"] = map[string]any{"b": true, "a": "s"}

	b := map[string]any{}
	b["mid"] = map[string]any{"a": "s", "b": true}
	b["alpha"] = []any{"x", "y"}
	b["zeta"] = 1

	outA, err := SerializeYAML(a, Style{})
	require.NoError(t, err)
	outB, err := SerializeYAML(b, Style{})
	require.NoError(t, err)
	require.Equal(t, string(outA), string(outB))
	require.Equal(t, "alpha:\n  - x\n  - y\nmid:\n  a: s\n  b: true\nzeta: 1\n", string(outA))
}

func TestStripBody(t *testing.T) {
	text := "---\ntags:\n  - lol\n  - deux\n---\n\n# Test\n\nHello world\n\n\n#cinq"
	require.Equal(t, "# Test\n\nHello world\n\n\n#cinq", StripBody(text))
	require.Equal(t, "# Test\n\nHello world", StripBody("# Test\n\nHello world"))
}
