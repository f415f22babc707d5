package validate

import "testing"

func TestSlug(t *testing.T) {
	valid := []string{"a", "ab", "ab-c", "ab-cd-ef", "2024-recap"}
	for _, s := range valid {
		if !Slug(s) {
			t.Errorf("Slug(%q) = false, want true", s)
		}
	}

	invalid := []string{"", " ", "  ", "a_b", "ab-c@d", "ab-cd!", "-ab", "ab-", "a--b", "Ab"}
	for _, s := range invalid {
		if Slug(s) {
			t.Errorf("Slug(%q) = true, want false", s)
		}
	}
}

func TestStatus(t *testing.T) {
	for _, s := range []string{"draft", "published", "scheduled"} {
		if !Status(s) {
			t.Errorf("Status(%q) = false, want true", s)
		}
	}
	for _, v := range []any{"foo", "bar", "", "Published", " draft", 1, nil, []string{"draft"}} {
		if Status(v) {
			t.Errorf("Status(%v) = true, want false", v)
		}
	}
}

func TestURL(t *testing.T) {
	for _, s := range []string{"https://google.com", "https://test.google.com/foo", "https://foo.bar.baz", "http://localhost:2368"} {
		if !URL(s) {
			t.Errorf("URL(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", " ", "foo", "http://", "https://", "@", "@@@@!! foo"} {
		if URL(s) {
			t.Errorf("URL(%q) = true, want false", s)
		}
	}
}

func TestCredential(t *testing.T) {
	if !Credential("a:b") {
		t.Error("a:b should be valid")
	}
	for _, s := range []string{"", " ", "a", ":b", "a:", ":"} {
		if Credential(s) {
			t.Errorf("Credential(%q) = true, want false", s)
		}
	}
}
