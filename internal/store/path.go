package store

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Sep separates ID segments.
const Sep = "."

// Join builds a node ID from segments.
func Join(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, Sep)
}

// Parent returns the ID of the enclosing node, or "" for a top-level node.
func Parent(id string) string {
	i := strings.LastIndex(id, Sep)
	if i < 0 {
		return ""
	}
	return id[:i]
}

// TrailingID parses the last segment of id as an object ID.
func TrailingID(id string) (int, bool) {
	seg := id[strings.LastIndex(id, Sep)+1:]
	n, err := strconv.Atoi(seg)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsDescendant reports whether id lies below ancestor.
func IsDescendant(id, ancestor string) bool {
	return strings.HasPrefix(id, ancestor+Sep)
}

// Match reports whether id matches a glob pattern where "*" matches within
// and across segments.
func Match(pattern, id string) bool {
	if pattern == "" || pattern == "*" || pattern == id {
		return true
	}
	ok, err := path.Match(pattern, id)
	return err == nil && ok
}
