package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chez-meme/models"
)

func TestDatabaseStore(t *testing.T) {
	s := NewDatabaseStore()
	a, err := s.Save(context.Background(), Upload{Data: []byte("jpeg"), MimeType: "image/jpeg", Ext: "jpg"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ImageToken)
	assert.Equal(t, a.ImageToken+".jpg", a.Filename)
	assert.Equal(t, []byte("jpeg"), a.ImageData)
	assert.Equal(t, "/images/"+a.ImageToken, a.URL())
	assert.True(t, s.Owns(a))

	_, err = s.Save(context.Background(), Upload{})
	assert.Error(t, err)
}

func TestFilesystemStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	s := NewFilesystemStore(dir)
	ctx := context.Background()

	a, err := s.Save(ctx, Upload{Data: []byte("png"), MimeType: "image/png", Ext: "png"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(a.Filename, ".png"))
	assert.True(t, s.Owns(a))
	assert.Equal(t, "/static/uploads/images/"+a.Filename, a.URL())

	data, err := os.ReadFile(filepath.Join(dir, a.Filename))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, s.Delete(ctx, a))
	_, err = os.Stat(filepath.Join(dir, a.Filename))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, s.Delete(ctx, a))
	// never escapes the directory
	assert.NoError(t, s.Delete(ctx, models.ImageAsset{Filename: "../../etc/passwd"}))
}

func TestChainDeletesWithOwner(t *testing.T) {
	dir := t.TempDir()
	chain, err := New(Options{Backend: "database", UploadDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "database", chain.Name())

	// a picture uploaded when the site still wrote to disk
	legacy := filepath.Join(dir, "old.jpg")
	require.NoError(t, os.WriteFile(legacy, []byte("x"), 0644))
	asset := models.ImageAsset{Filename: "old.jpg"}
	assert.True(t, chain.Owns(asset))
	require.NoError(t, chain.Delete(context.Background(), asset))
	_, err = os.Stat(legacy)
	assert.True(t, os.IsNotExist(err))

	assert.False(t, chain.Owns(models.ImageAsset{}))
	assert.NoError(t, chain.Delete(context.Background(), models.ImageAsset{}))
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, "database", c.Name())

	c, err = New(Options{Backend: "filesystem", UploadDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", c.Name())

	c, err = New(Options{Backend: "auto", CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "chez_meme"})
	require.NoError(t, err)
	assert.Equal(t, "cloudinary", c.Name())
	assert.Len(t, c.All, 3)

	_, err = New(Options{Backend: "cloudinary"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
	_, err = New(Options{Backend: "s3"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestCloudinarySignedURL(t *testing.T) {
	s, err := NewCloudinaryStore("demo", "key", "secret", "chez_meme")
	require.NoError(t, err)

	url, err := s.SignedURL("chez_meme/abc123")
	require.NoError(t, err)
	assert.Contains(t, url, "res.cloudinary.com/demo/image/upload/")
	assert.Contains(t, url, "/s--")
	assert.Contains(t, url, "q_auto")
	assert.True(t, strings.HasSuffix(url, "chez_meme/abc123"))

	assert.True(t, s.Owns(models.ImageAsset{PublicID: "chez_meme/abc123"}))
	assert.False(t, s.Owns(models.ImageAsset{ImageToken: "t"}))
}
