package stacktrace

import "strings"

// InternalPaths returns the file:line of every frame under an internal/
// directory of a debug.Stack dump, relative to the module root.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		// file lines look like "/abs/path/internal/x/y.go:12 +0x1d"
		_, rel, ok := strings.Cut(line, "/internal/")
		if !ok || !strings.Contains(rel, ".go:") {
			continue
		}
		rel, _, _ = strings.Cut(rel, " ")
		paths = append(paths, "internal/"+rel)
	}
	return paths
}
