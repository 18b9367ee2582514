package ir

// findJSONCandidates scans s for top-level JSON object candidates.
// Braces inside string literals are ignored, including escaped quotes.
//
// Iterating bytes is safe for the ASCII delimiters because UTF-8 never uses
// ASCII byte values inside multi-byte sequences.
func findJSONCandidates(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escape := false

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}
