package utils

import (
	"golang.org/x/crypto/bcrypt"
)

// GenerateKeyHash hashes a scanner device key for storage in configuration.
func GenerateKeyHash(key []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(key, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareKeyHash checks a presented scanner key against the stored hash.
func CompareKeyHash(hash, key []byte) bool {
	if err := bcrypt.CompareHashAndPassword(hash, key); err != nil {
		return false
	}
	return true
}
