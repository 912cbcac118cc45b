// Package xmlname maps arbitrary column names to valid XML element
// identifiers.
//
// Exactly one normalization function exists in the repository. Both the
// schema-artifact generator and the document generator import it, which is
// what guarantees element-name parity between a generated document and its
// schema: the same source column always yields the same element name in both
// trees.
package xmlname

import "strings"

// Normalize converts an arbitrary column name into a valid element
// identifier:
//   - every rune outside [A-Za-z0-9_] becomes an underscore
//   - if the result does not start with a letter or underscore, an
//     underscore is prefixed
//
// Normalize is pure, deterministic, and idempotent:
// Normalize(Normalize(x)) == Normalize(x). The output matches
// ^[A-Za-z_][A-Za-z0-9_]*$ or is empty (only for empty input).
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(name) + 1)

	for _, r := range name {
		if isIdentRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}

	out := b.String()
	if out != "" && !isStartRune(rune(out[0])) {
		out = "_" + out
	}
	return out
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

func isStartRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
