package auth

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when the account lookup misses so a login
// attempt costs one bcrypt comparison whether or not the account exists.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// BurnPasswordCheck equalizes timing between unknown-account and bad-password
// failures.
func BurnPasswordCheck(plaintext string) {
	bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}
