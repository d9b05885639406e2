package scanner

import "fmt"

// Hash returns the content fingerprint used for change detection: a
// rolling sum*31+byte over the content, kept to 32 bits and rendered as
// eight lowercase hex digits.
func Hash(content []byte) string {
	var sum uint32
	for _, b := range content {
		sum = sum*31 + uint32(b)
	}
	return fmt.Sprintf("%08x", sum)
}
