// Package relay provides room code generation for the live relay service.
package relay

import "math/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

// GenerateCode returns a 6-character room code with each position drawn
// uniformly from the uppercase alphabet. Codes are human-typeable and short,
// so they are not unique by construction; the registry retries generation
// until it finds a code that is not currently in use.
func GenerateCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}
