package certificate

import "strings"

const (
	// names up to this many characters print on one line
	singleLineMax = 30
	// a two-line split looks for a space within this prefix
	breakWindow = 15
)

// SplitName breaks a student name into at most two display lines.
//
// Names of at most 30 characters stay whole. Longer names break at the last
// space within the first 15 characters. Without such a space the first line
// is the first 15 characters and the second line starts at character 30.
func SplitName(name string) []string {
	runes := []rune(name)
	if len(runes) <= singleLineMax {
		return []string{name}
	}

	prefix := string(runes[:breakWindow])
	if idx := strings.LastIndex(prefix, " "); idx > -1 {
		return []string{
			strings.TrimSpace(name[:idx]),
			strings.TrimSpace(name[idx:]),
		}
	}

	return []string{prefix, strings.TrimSpace(string(runes[singleLineMax:]))}
}
