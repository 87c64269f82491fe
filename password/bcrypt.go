package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

func isBcrypt(encodedHash string) bool {
	for _, prefix := range bcryptPrefixes {
		if strings.HasPrefix(encodedHash, prefix) {
			return true
		}
	}
	return false
}

// verifyBcrypt checks hashes carried over from the earlier BCrypt-encoded
// user table. bcrypt compares in constant time internally.
func verifyBcrypt(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
