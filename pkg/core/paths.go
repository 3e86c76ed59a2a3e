package core

import "path/filepath"

// ResolvePath resolves a configured path against baseDir unless it is absolute.
// An empty path stays empty.
func ResolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
