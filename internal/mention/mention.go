// Package mention extracts @name tokens from free-form message content.
package mention

// Parse scans content for @name tokens and returns the matched names in
// order, duplicates preserved. A name is one or more word runes, optionally
// extended with -word segments (@name, @multi-part-name). Matching is
// case-sensitive and has no side effects.
func Parse(content string) []string {
	var out []string
	runes := []rune(content)

	for i := 0; i < len(runes); i++ {
		if runes[i] != '@' {
			continue
		}
		start := i + 1
		j := start
		for j < len(runes) && isNameRune(runes[j]) {
			j++
		}
		// allow "-word" continuation segments
		for j < len(runes) && runes[j] == '-' && j+1 < len(runes) && isNameRune(runes[j+1]) {
			j++
			for j < len(runes) && isNameRune(runes[j]) {
				j++
			}
		}
		if j > start {
			out = append(out, string(runes[start:j]))
			i = j - 1
		}
	}
	return out
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_':
		return true
	default:
		return false
	}
}
