package typedesc

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeIdent returns s in NFC form and checks it is a C identifier:
// a letter or underscore followed by letters, digits or underscores.
func NormalizeIdent(s string) (string, error) {
	s = norm.NFC.String(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return "", fmt.Errorf("%q is not a valid C identifier", s)
		}
	}
	if isKeyword(s) {
		return "", fmt.Errorf("%q is a reserved word", s)
	}
	return s, nil
}

var keywords = map[string]struct{}{
	"struct": {}, "union": {}, "enum": {}, "void": {}, "const": {},
	"volatile": {}, "restrict": {}, "signed": {}, "unsigned": {},
}

func isKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}
