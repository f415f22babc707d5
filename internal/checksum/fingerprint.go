package checksum

import (
	"fmt"
	"strings"

	"github.com/inful/mdfp"

	"github.com/starford/ansuz/internal/frontmatter"
)

// FingerprintKey is the front matter key holding the stored fingerprint.
const FingerprintKey = "publish_hash"

// Wrapper keys of the hashed document. Note fields are nested under
// fieldsKey, so no user key can shadow the excerpt or sit at the top level
// where mdfp strips its own "fingerprint:" line.
const (
	fieldsKey  = "front_matter"
	excerptKey = "excerpt"
)

// Fingerprint computes the change token of a note from its front matter
// fields, body and excerpt.
//
// FingerprintKey is always excluded, so a stored fingerprint never feeds back
// into the next one. fields is not modified. Keys are serialized in sorted
// order, so equal maps hash equally whatever their insertion order.
func Fingerprint(fields map[string]any, body, excerpt string) (string, error) {
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == FingerprintKey {
			continue
		}
		hashed[k] = v
	}
	doc := map[string]any{fieldsKey: hashed, excerptKey: excerpt}

	serialized, err := frontmatter.SerializeYAML(doc, frontmatter.Style{Newline: "\n"})
	if err != nil {
		return "", fmt.Errorf("checksum: serialize front matter: %w", err)
	}
	fm := strings.TrimSuffix(string(serialized), "\n")

	return mdfp.CalculateFingerprintFromParts(fm, body), nil
}
