package bbutil

import "github.com/bytedance/sonic"

// maxScanChars bounds FirstJSONObject's scan to avoid pathological inputs.
const maxScanChars = 300_000

// FirstJSONObject scans s for the first '{' or '[', tracks bracket depth
// while respecting quoted strings and backslash escapes, and returns the
// substring spanning the matched closing bracket. Returns ("", false) if
// no balanced JSON value is found within the scan cap.
func FirstJSONObject(s string) (string, bool) {
	s = SanitizeText(s)

	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}

	open := s[start]
	var closeCh byte
	if open == '{' {
		closeCh = '}'
	} else {
		closeCh = ']'
	}

	depth := 0
	inStr := false
	esc := false
	for j := start; j < len(s); j++ {
		if j-start > maxScanChars {
			break
		}
		c := s[j]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch {
		case c == '"':
			inStr = true
		case c == open:
			depth++
		case c == closeCh:
			depth--
			if depth == 0 {
				return s[start : j+1], true
			}
		}
	}
	return "", false
}

// SafeJSONUnmarshal decodes s into v using sonic, returning ok=false
// (v left untouched) rather than an error on any parse failure.
func SafeJSONUnmarshal(s string, v any) bool {
	return sonic.UnmarshalString(s, v) == nil
}
