package hash

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 12

// dummyHashes caches one throwaway hash per cost. Comparing against it when
// no account matches makes a miss cost the same as a wrong password.
var dummyHashes sync.Map

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return DefaultCost
	}
	return cost
}

func HashPassword(password string, cost int) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyHash returns the throwaway hash for cost, generating it on first use.
func DummyHash(cost int) []byte {
	cost = normalizeCost(cost)
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, err := bcrypt.GenerateFromPassword([]byte("accounts-dummy-password"), cost)
	if err != nil {
		// cost is already in range
		panic(err)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

// DummyCompare spends the time of a password check at cost without an account.
func DummyCompare(password string, cost int) {
	_ = bcrypt.CompareHashAndPassword(DummyHash(cost), []byte(password))
}
