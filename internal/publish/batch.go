package publish

import (
	"fmt"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// ConflictError reports candidates that would collide on the platform.
type ConflictError struct {
	// Kind is apperr.ErrDuplicateSlug or apperr.ErrDuplicateTitle.
	Kind  error
	Value string
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v %q: %s", e.Kind, e.Value, strings.Join(e.Paths, ", "))
}

func (e *ConflictError) Unwrap() error { return e.Kind }

// ValidateBatch rejects a run in which two candidates share a slug or a
// title. Slugs are checked first; the first conflicting value in candidate
// order is reported.
func ValidateBatch(cands []Candidate) error {
	if err := findDuplicate(cands, apperr.ErrDuplicateSlug, func(c Candidate) string { return c.Metadata.Slug }); err != nil {
		return err
	}
	return findDuplicate(cands, apperr.ErrDuplicateTitle, func(c Candidate) string { return c.Metadata.Title })
}

func findDuplicate(cands []Candidate, kind error, key func(Candidate) string) error {
	paths := make(map[string][]string, len(cands))
	var order []string
	for _, c := range cands {
		k := key(c)
		if _, seen := paths[k]; !seen {
			order = append(order, k)
		}
		paths[k] = append(paths[k], c.Document.Path)
	}
	for _, k := range order {
		if len(paths[k]) > 1 {
			return &ConflictError{Kind: kind, Value: k, Paths: paths[k]}
		}
	}
	return nil
}
