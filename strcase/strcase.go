// Package strcase converts identifiers between common naming conventions.
package strcase

import "strings"

// ScreamingSnake converts s from camelCase, PascalCase, kebab-case or snake_case
// into SCREAMING_SNAKE_CASE.
func ScreamingSnake(s string) string {
	var b strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('_')
			continue
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				prev := runes[i-1]
				nextIsLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
				if (prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9') ||
					((prev >= 'A' && prev <= 'Z') && nextIsLower) {
					b.WriteByte('_')
				}
			}
		}

		b.WriteRune(toUpper(r))
	}

	return b.String()
}

// Snake converts s from camelCase, PascalCase, kebab-case or snake_case into snake_case.
func Snake(s string) string {
	return strings.ToLower(ScreamingSnake(s))
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}

	return r
}
