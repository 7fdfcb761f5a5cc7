package utils

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

var ErrUnknownHashFormat = errors.New("unknown password hash format")

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func IsBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CheckPassword verifies password against a bcrypt hash or one of the
// werkzeug formats written by the previous deployment:
//
//	pbkdf2:sha256:600000$salt$hexdigest
//	scrypt:32768:8:1$salt$hexdigest
//
// needsRehash is true when the stored hash is not bcrypt.
func CheckPassword(stored, password string) (ok bool, needsRehash bool, err error) {
	if IsBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false, nil
	}

	method, salt, digest, found := splitWerkzeug(stored)
	if !found {
		return false, false, ErrUnknownHashFormat
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false, false, ErrUnknownHashFormat
	}

	var got []byte
	parts := strings.Split(method, ":")
	switch parts[0] {
	case "pbkdf2":
		hashName := "sha256"
		iterations := 600000
		if len(parts) > 1 {
			hashName = parts[1]
		}
		if len(parts) > 2 {
			if iterations, err = strconv.Atoi(parts[2]); err != nil {
				return false, false, ErrUnknownHashFormat
			}
		}
		var h func() hash.Hash
		switch hashName {
		case "sha256":
			h = sha256.New
		case "sha512":
			h = sha512.New
		case "sha1":
			h = sha1.New
		default:
			return false, false, ErrUnknownHashFormat
		}
		got = pbkdf2.Key([]byte(password), []byte(salt), iterations, len(want), h)
	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(parts) == 4 {
			var e1, e2, e3 error
			n, e1 = strconv.Atoi(parts[1])
			r, e2 = strconv.Atoi(parts[2])
			p, e3 = strconv.Atoi(parts[3])
			if e1 != nil || e2 != nil || e3 != nil {
				return false, false, ErrUnknownHashFormat
			}
		}
		got, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, len(want))
		if err != nil {
			return false, false, err
		}
	default:
		return false, false, ErrUnknownHashFormat
	}

	return subtle.ConstantTimeCompare(got, want) == 1, true, nil
}

func splitWerkzeug(stored string) (method, salt, digest string, ok bool) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
