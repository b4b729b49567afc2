// Package bids holds small helpers for BIDS style paths.
package bids

import (
	"os"
	"path/filepath"
	"strings"
)

// CollectPart returns the first path element carrying the entity, from
// "<entity>-" to the end of that element. For entity "sub" and path
// /data/sub-NDAR123/ses-01 it returns "sub-NDAR123".
func CollectPart(entity, path string) string {
	prefix := entity + "-"
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if i := strings.Index(part, prefix); i >= 0 {
			if found := part[i:]; len(found) > len(prefix) {
				return found
			}
		}
	}
	return ""
}

// Label returns value as a BIDS entity, adding the "<entity>-" prefix when
// value lacks it. An empty value stays empty.
func Label(entity, value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.HasPrefix(value, entity+"-") {
		return value
	}
	return entity + "-" + value
}

// FilePrefix joins the subject and session entities into a file name prefix,
// e.g. "sub-01_ses-02_". Missing entities are skipped.
func FilePrefix(subject, session string) string {
	var b strings.Builder
	for _, e := range []string{subject, session} {
		if e != "" {
			b.WriteString(e)
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ExpandPath resolves a leading ~ to the home directory and makes path
// absolute. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return filepath.Abs(path)
}
