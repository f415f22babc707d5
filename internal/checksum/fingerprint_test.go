package checksum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"publish_slug":   "hello-world",
			"publish_status": "published",
			"tags":           []any{"go", "notes"},
		}
	}

	t.Run("deterministic", func(t *testing.T) {
		a, err := Fingerprint(base(), "body", "excerpt")
		require.NoError(t, err)
		b, err := Fingerprint(base(), "body", "excerpt")
		require.NoError(t, err)
		require.NotEmpty(t, a)
		require.Equal(t, a, b)
	})

	t.Run("stable across map insertion order", func(t *testing.T) {
		fa := map[string]any{}
		fa["a"] = 1
		fa["b"] = "two"
		fb := map[string]any{}
		fb["b"] = "two"
		fb["a"] = 1

		a, err := Fingerprint(fa, "body", "")
		require.NoError(t, err)
		b, err := Fingerprint(fb, "body", "")
		require.NoError(t, err)
		require.Equal(t, a, b)
	})

	t.Run("ignores the stored fingerprint", func(t *testing.T) {
		plain, err := Fingerprint(base(), "body", "")
		require.NoError(t, err)

		withOld := base()
		withOld[FingerprintKey] = "stale-value"
		got, err := Fingerprint(withOld, "body", "")
		require.NoError(t, err)
		require.Equal(t, plain, got)

		withOther := base()
		withOther[FingerprintKey] = "<temporary>"
		got2, err := Fingerprint(withOther, "body", "")
		require.NoError(t, err)
		require.Equal(t, plain, got2)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		fields := base()
		fields[FingerprintKey] = "keep-me"
		_, err := Fingerprint(fields, "body", "x")
		require.NoError(t, err)
		require.Equal(t, "keep-me", fields[FingerprintKey])
		require.Len(t, fields, 4)
	})

	t.Run("changes with each input", func(t *testing.T) {
		ref, err := Fingerprint(base(), "body", "excerpt")
		require.NoError(t, err)

		changedMeta := base()
		changedMeta["publish_status"] = "draft"
		m, err := Fingerprint(changedMeta, "body", "excerpt")
		require.NoError(t, err)
		require.NotEqual(t, ref, m)

		b, err := Fingerprint(base(), "other body", "excerpt")
		require.NoError(t, err)
		require.NotEqual(t, ref, b)

		e, err := Fingerprint(base(), "body", "other excerpt")
		require.NoError(t, err)
		require.NotEqual(t, ref, e)
	})

	t.Run("keys named like wrapper parts still count", func(t *testing.T) {
		for _, key := range []string{"excerpt", ".excerpt", "fingerprint", "front_matter"} {
			a, err := Fingerprint(map[string]any{key: "user"}, "body", "same")
			require.NoError(t, err)
			b, err := Fingerprint(map[string]any{key: "changed"}, "body", "same")
			require.NoError(t, err)
			require.NotEqual(t, a, b, key)
		}
	})

	t.Run("excerpt is not a front matter value", func(t *testing.T) {
		a, err := Fingerprint(map[string]any{"excerpt": "x"}, "body", "")
		require.NoError(t, err)
		b, err := Fingerprint(map[string]any{}, "body", "x")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})

	t.Run("nil fields", func(t *testing.T) {
		got, err := Fingerprint(nil, "body", "")
		require.NoError(t, err)
		require.NotEmpty(t, got)
	})
}

func TestSum(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
	require.Equal(t, Sum([]byte("x")), Sum([]byte("x")))
}
