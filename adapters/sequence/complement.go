package sequence

import (
	"github.com/biogo/biogo/alphabet"
)

// ReverseComplement returns the DNA reverse complement of s. Symbols without a
// complement become N.
func ReverseComplement(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c, ok := alphabet.DNA.Complement(alphabet.Letter(s[i]))
		b := byte(c)
		if !ok || b == '-' {
			b = 'N'
		}
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[len(s)-1-i] = b
	}
	return string(out)
}
