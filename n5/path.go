package n5

import (
	"fmt"
	"strings"
)

// SplitPath splits a path into its components.
// Leading and trailing slashes are handled, empty components are removed.
//
// Examples:
//   - "/" -> []string{}
//   - "/volume" -> []string{"volume"}
//   - "volume/raw/" -> []string{"volume", "raw"}
func SplitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return []string{}
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanPath normalizes a dataset or group path to its slash-separated
// relative form without leading or trailing slashes. The root is "".
// Components "." and ".." are rejected.
func CleanPath(path string) (string, error) {
	parts := SplitPath(path)
	for _, p := range parts {
		if p == "." || p == ".." {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidPath, path, p)
		}
	}
	return strings.Join(parts, "/"), nil
}

// JoinPath joins path components with "/".
func JoinPath(elem ...string) string {
	var parts []string
	for _, e := range elem {
		parts = append(parts, SplitPath(e)...)
	}
	return strings.Join(parts, "/")
}

const attributesFile = "attributes.json"

func attributesKey(path string) string {
	return JoinPath(path, attributesFile)
}

func blockKey(path string, coord []int64) string {
	var b strings.Builder
	b.WriteString(path)
	for _, c := range coord {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		fmt.Fprintf(&b, "%d", c)
	}
	return b.String()
}
