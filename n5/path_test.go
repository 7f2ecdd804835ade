package n5

import (
	"errors"
	"testing"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"", []string{}},
		{"/", []string{}},
		{"/volume", []string{"volume"}},
		{"volume/raw/", []string{"volume", "raw"}},
		{"a//b", []string{"a", "b"}},
	}

	for _, tt := range tests {
		got := SplitPath(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		}
	}
}

func TestCleanPath(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"/":            "",
		"/volume/raw/": "volume/raw",
		"a//b":         "a/b",
	}
	for in, want := range tests {
		got, err := CleanPath(in)
		if err != nil {
			t.Fatalf("CleanPath(%q) failed: %v", in, err)
		}
		if got != want {
			t.Errorf("CleanPath(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"..", "a/../b", "./a"} {
		if _, err := CleanPath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("CleanPath(%q): expected ErrInvalidPath, got %v", bad, err)
		}
	}
}

func TestKeys(t *testing.T) {
	if got := JoinPath("/a/", "b", "", "c/d"); got != "a/b/c/d" {
		t.Errorf("JoinPath = %q", got)
	}
	if got := attributesKey(""); got != "attributes.json" {
		t.Errorf("attributesKey(root) = %q", got)
	}
	if got := attributesKey("g/ds"); got != "g/ds/attributes.json" {
		t.Errorf("attributesKey = %q", got)
	}
	if got := blockKey("g/ds", []int64{0, 12, 3}); got != "g/ds/0/12/3" {
		t.Errorf("blockKey = %q", got)
	}
}
