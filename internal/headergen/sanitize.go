package headergen

import "strings"

// Leaves room for suffixes and the .h extension on long template names.
const maxSanitizedLen = 200

// Sanitize makes a C++ symbol name safe for filenames and guard
// macros. Scope separators and template punctuation degrade to
// underscores, runs collapse to one, and the result is length-bounded.
func Sanitize(name string) string {
	if name == "" {
		return "unnamed"
	}
	s := strings.ReplaceAll(name, "::", "__")
	s = strings.ReplaceAll(s, "<", "_")
	s = strings.ReplaceAll(s, ">", "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s = b.String()

	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	if len(s) > maxSanitizedLen {
		s = strings.TrimRight(s[:maxSanitizedLen], "_")
	}
	return s
}

// HeaderFileName builds the on-disk name for a generated header, with
// an optional suffix before the extension.
func HeaderFileName(name, suffix string) string {
	base := Sanitize(name)
	if suffix != "" {
		base += "_" + Sanitize(suffix)
	}
	return base + ".h"
}

func guardMacro(name, suffix string) string {
	return strings.ToUpper(Sanitize(name)) + suffix
}
