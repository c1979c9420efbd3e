package fortress

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphabetLowercase = "abcdefghijklmnopqrstuvwxyz"
	alphabetNumbers   = "0123456789"
)

// RandomString draws length characters uniformly from the selected
// alphabet using the CSRNG. The others characters are used as given:
// repeated characters are not deduplicated and therefore weight the
// distribution toward themselves.
func RandomString(length int, uppercase, lowercase, numbers bool, others string) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("%w: length must be at least 1", ErrInvalidInput)
	}

	alphabet := []rune(others)
	if uppercase {
		alphabet = append(alphabet, []rune(alphabetUppercase)...)
	}
	if lowercase {
		alphabet = append(alphabet, []rune(alphabetLowercase)...)
	}
	if numbers {
		alphabet = append(alphabet, []rune(alphabetNumbers)...)
	}
	if len(alphabet) == 0 {
		return "", fmt.Errorf("%w: empty character set", ErrInvalidInput)
	}

	size := big.NewInt(int64(len(alphabet)))
	result := make([]rune, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		result[i] = alphabet[n.Int64()]
	}
	return string(result), nil
}
