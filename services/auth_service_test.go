package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"chez-meme/models"
	"chez-meme/testutil"
	"chez-meme/utils"
)

func TestAuthenticate(t *testing.T) {
	db := testutil.PrepareDB(t)
	auth := NewAuthService(db)
	ctx := context.Background()
	testutil.CreateAdmin(t, db, "mamie", "confiture")
	require.NoError(t, db.Create(&models.User{Username: "guest", Email: "g@x.fr", PasswordHash: mustHash(t, "confiture")}).Error)

	u, err := auth.Authenticate(ctx, "mamie", "confiture")
	require.NoError(t, err)
	assert.Equal(t, "mamie", u.Username)

	_, err = auth.Authenticate(ctx, "mamie", "beurre")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "nobody", "confiture")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "guest", "confiture")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "only admins may log in")
}

func TestAuthenticateUpgradesLegacyHash(t *testing.T) {
	db := testutil.PrepareDB(t)
	auth := NewAuthService(db)
	ctx := context.Background()

	digest := hex.EncodeToString(pbkdf2.Key([]byte("confiture"), []byte("salt"), 1000, 32, sha256.New))
	legacy := models.User{Username: "mamie", Email: "m@x.fr", PasswordHash: "pbkdf2:sha256:1000$salt$" + digest, IsAdmin: true}
	require.NoError(t, db.Create(&legacy).Error)

	_, err := auth.Authenticate(ctx, "mamie", "confiture")
	require.NoError(t, err)

	var got models.User
	require.NoError(t, db.First(&got, legacy.ID).Error)
	assert.True(t, utils.IsBcryptHash(got.PasswordHash))

	_, err = auth.Authenticate(ctx, "mamie", "confiture")
	assert.NoError(t, err)
}

func TestEnsureAdmin(t *testing.T) {
	db := testutil.PrepareDB(t)
	auth := NewAuthService(db)
	ctx := context.Background()

	_, created, err := auth.EnsureAdmin(ctx, "admin", "admin@chez-meme.com", "premier-mdp")
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = auth.EnsureAdmin(ctx, "admin", "", "second-mdp")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = auth.Authenticate(ctx, "admin", "premier-mdp")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Authenticate(ctx, "admin", "second-mdp")
	assert.NoError(t, err)

	_, _, err = auth.EnsureAdmin(ctx, "admin", "", "court")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = auth.CreateAdmin(ctx, "admin", "other@chez-meme.com", "troisieme-mdp")
	assert.ErrorIs(t, err, ErrUserExists)

	n, err := auth.CountAdmins(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestForceAdminAndSetPassword(t *testing.T) {
	db := testutil.PrepareDB(t)
	auth := NewAuthService(db)
	ctx := context.Background()
	old := testutil.CreateAdmin(t, db, "admin", "ancien-mdp")

	_, err := auth.ForceAdmin(ctx, "admin", old.Email, "nouveau-mdp")
	require.NoError(t, err)
	_, err = auth.Authenticate(ctx, "admin", "ancien-mdp")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	n, err := auth.CountAdmins(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, auth.SetPassword(ctx, "admin", "encore-un-mdp"))
	_, err = auth.Authenticate(ctx, "admin", "encore-un-mdp")
	assert.NoError(t, err)

	assert.ErrorIs(t, auth.SetPassword(ctx, "ghost", "encore-un-mdp"), ErrUserNotFound)
	assert.ErrorIs(t, auth.SetPassword(ctx, "admin", "abc"), ErrWeakPassword)
}

func TestSessionManager(t *testing.T) {
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewSessionManager("secret", time.Hour)
	m.Now = func() time.Time { return now }

	token, err := m.Issue(&models.User{ID: 7, Username: "mamie", IsAdmin: true})
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserID)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "mamie", claims.Subject)

	other := NewSessionManager("another-secret", time.Hour)
	other.Now = m.Now
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	now = now.Add(2 * time.Hour)
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"uid": 7, "adm": true}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func mustHash(t *testing.T, pwd string) string {
	t.Helper()
	h, err := utils.HashPassword(pwd)
	require.NoError(t, err)
	return h
}
