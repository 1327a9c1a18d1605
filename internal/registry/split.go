package registry

// splitTopLevel splits s on sep at brace/quote depth zero, mirroring
// the table-literal grammar's own bracket/quote awareness so a
// composite cell like "{1,2},{3,4}" splits into two array elements
// rather than four.
func splitTopLevel(s string, sep rune) []string {
	if s == "" {
		return nil
	}
	var parts []string
	depth := 0
	var quote rune
	start := 0
	runes := []rune(s)
	for i, c := range runes {
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(runes) {
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, string(runes[start:i]))
			start = i + 1
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// splitKV splits one "name=value" / "key=value" top-level item on the
// first unquoted, un-nested '=' sign.
func splitKV(s string) (string, string, bool) {
	depth := 0
	var quote rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			depth--
		case c == '=' && depth == 0:
			return string(runes[:i]), string(runes[i+1:]), true
		}
	}
	return "", "", false
}
