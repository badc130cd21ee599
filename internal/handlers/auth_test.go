package handlers

import (
	"testing"
)

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/?page=2&sort=volume", true},
		{"/api/keywords", true},
		{"", false},
		{"//evil.example.com", false},
		{`/\evil.example.com`, false},
		{"https://evil.example.com/", false},
		{"keywords", false},
	}
	for _, tt := range tests {
		if got := isLocalPath(tt.path); got != tt.want {
			t.Errorf("isLocalPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestProfileClaimsFill(t *testing.T) {
	c := profileClaims{Sub: "sub-1", Email: "id@example.com"}
	c.fill(profileClaims{Sub: "other", Email: "info@example.com", Name: "Ada", Picture: "https://example.com/a.png"})

	want := profileClaims{Sub: "sub-1", Email: "id@example.com", Name: "Ada", Picture: "https://example.com/a.png"}
	if c != want {
		t.Errorf("fill() = %+v, want %+v", c, want)
	}
}

func TestGenerateState(t *testing.T) {
	a, b := generateState(), generateState()
	if a == "" || a == b {
		t.Errorf("generateState() returned %q then %q, want distinct non-empty values", a, b)
	}
}
