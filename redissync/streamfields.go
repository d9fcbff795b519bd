package redissync

import "unicode/utf8"

// SanitizeStreamFields validates/escapes every value in fields so it is safe to hand to XADD: any
// value that is not valid UTF-8 has its invalid byte sequences replaced with the Unicode
// replacement character, matching the C++ source's UTF-8 validation pass before StateChangeHandler's
// XADD.
func SanitizeStreamFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))

	for k, v := range fields {
		if utf8.ValidString(v) {
			out[k] = v
		} else {
			out[k] = sanitizeUTF8(v)
		}
	}

	return out
}

// sanitizeUTF8 replaces every invalid UTF-8 byte sequence in s with the Unicode replacement
// character, preserving every valid rune as-is.
func sanitizeUTF8(s string) string {
	var b []byte

	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			b = append(b, []byte(string(utf8.RuneError))...)
			i++
			continue
		}

		b = append(b, s[i:i+size]...)
		i += size
	}

	return string(b)
}
