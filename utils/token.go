package utils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// GenerateURLToken returns length random bytes encoded as unpadded URL-safe
// base64, suitable for approve/reject links.
func GenerateURLToken(length int) (string, error) {
	b, err := randomBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomBytes(length int) ([]byte, error) {
	if length <= 0 {
		return nil, errors.New("invalid token length")
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
