// Package validate checks publishing metadata and platform settings values.
//
// The boolean helpers never panic and never log; reporting is left to callers.
// The ozzo-validation rules are exported so that configuration structs can
// reuse the exact same checks in their Validate methods.
package validate

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Lifecycle statuses of a published note.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusScheduled = "scheduled"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var (
	// SlugRule accepts lowercase alphanumerics separated by single hyphens.
	SlugRule = validation.Match(slugRe).Error("must be lowercase alphanumerics separated by single hyphens")

	// StatusRule accepts the lifecycle statuses only.
	StatusRule = validation.In(StatusDraft, StatusPublished, StatusScheduled).Error("must be one of draft, published, scheduled")

	// URLRule accepts absolute URLs with a scheme and a host.
	URLRule = validation.By(func(value any) error {
		s, _ := value.(string)
		if !URL(s) {
			return errors.New("must be an absolute URL")
		}
		return nil
	})

	// CredentialRule accepts "<id>:<secret>" keys with both parts present.
	CredentialRule = validation.By(func(value any) error {
		s, _ := value.(string)
		if !Credential(s) {
			return errors.New("must have the form <id>:<secret>")
		}
		return nil
	})
)

// Slug reports whether v is a valid post slug.
func Slug(v string) bool {
	return validation.Validate(v, validation.Required, SlugRule) == nil
}

// Status reports whether v is one of the known lifecycle statuses.
// Values that are not strings are never valid.
func Status(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return validation.Validate(s, validation.Required, StatusRule) == nil
}

// URL reports whether v parses as an absolute URL.
func URL(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// Credential reports whether v is a non-empty "<id>:<secret>" pair.
func Credential(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	id, secret, ok := strings.Cut(v, ":")
	return ok && id != "" && secret != ""
}
