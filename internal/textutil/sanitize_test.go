package textutil

import "testing"

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Launch Day", "launch-day"},
		{"  Hello, World!  ", "hello-world"},
		{"Part 2: The Return", "part-2-the-return"},
		{"Café", "caf"},
		{"***", "fallback"},
		{"", "fallback"},
	}
	for _, tc := range cases {
		if got := Slug(tc.in, "fallback"); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt([]string{"Engines", "ignite."}, 40); got != "Engines ignite." {
		t.Fatalf("Excerpt = %q", got)
	}
	if got := Excerpt([]string{"abcdefgh"}, 5); got != "abcd…" {
		t.Fatalf("Excerpt truncated = %q", got)
	}
	if got := Excerpt([]string{"héllo wörld"}, 6); got != "héllo…" {
		t.Fatalf("Excerpt runes = %q", got)
	}
	if got := Excerpt(nil, 5); got != "" {
		t.Fatalf("Excerpt empty = %q", got)
	}
}
