package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, IsBcryptHash(hash))

	ok, rehash, err := CheckPassword(hash, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _, err = CheckPassword(hash, "wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPasswordLegacyHashes(t *testing.T) {
	pbkdf := hex.EncodeToString(pbkdf2.Key([]byte("mémé2024"), []byte("s4lt"), 1000, 32, sha256.New))
	sc, err := scrypt.Key([]byte("mémé2024"), []byte("pepper"), 1024, 8, 1, 64)
	require.NoError(t, err)

	tests := []struct {
		name   string
		stored string
	}{
		{name: "pbkdf2", stored: fmt.Sprintf("pbkdf2:sha256:1000$s4lt$%s", pbkdf)},
		{name: "scrypt", stored: fmt.Sprintf("scrypt:1024:8:1$pepper$%s", hex.EncodeToString(sc))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, rehash, err := CheckPassword(tt.stored, "mémé2024")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, rehash)

			ok, _, err = CheckPassword(tt.stored, "nope")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCheckPasswordUnknownFormat(t *testing.T) {
	for _, stored := range []string{"", "plain", "md5$salt$abcd", "pbkdf2:sha256:1000$salt$zz", "pbkdf2:whirlpool:1$s$abcd"} {
		_, _, err := CheckPassword(stored, "x")
		assert.ErrorIs(t, err, ErrUnknownHashFormat, stored)
	}
}
