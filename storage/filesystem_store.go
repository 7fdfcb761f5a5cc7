package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chez-meme/models"
)

// FilesystemStore writes images into the uploads directory served under
// /static/uploads/images.
type FilesystemStore struct {
	Dir string
}

func NewFilesystemStore(dir string) *FilesystemStore {
	if dir == "" {
		dir = filepath.Join("static", "uploads", "images")
	}
	return &FilesystemStore{Dir: dir}
}

func (s *FilesystemStore) Name() string { return "filesystem" }

func (s *FilesystemStore) Save(_ context.Context, up Upload) (models.ImageAsset, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return models.ImageAsset{}, fmt.Errorf("mkdir uploads dir: %w", err)
	}
	filename := uuid.NewString() + "." + up.Ext
	if err := os.WriteFile(filepath.Join(s.Dir, filename), up.Data, 0644); err != nil {
		return models.ImageAsset{}, fmt.Errorf("write file: %w", err)
	}
	return models.ImageAsset{Filename: filename, MimeType: up.MimeType}, nil
}

func (s *FilesystemStore) Owns(a models.ImageAsset) bool {
	return a.Filename != "" && a.ImageToken == "" && a.PublicID == "" && a.ImageURL == "" &&
		!strings.HasPrefix(a.Filename, "http")
}

func (s *FilesystemStore) Delete(_ context.Context, a models.ImageAsset) error {
	name := filepath.Base(a.Filename)
	if name == "." || name == string(filepath.Separator) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
