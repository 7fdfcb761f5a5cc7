package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"chez-meme/models"
)

// DatabaseStore keeps the image bytes in the gallery row itself. The picture
// is served by /images/:token.
type DatabaseStore struct{}

func NewDatabaseStore() *DatabaseStore { return &DatabaseStore{} }

func (DatabaseStore) Name() string { return "database" }

func (DatabaseStore) Save(_ context.Context, up Upload) (models.ImageAsset, error) {
	if len(up.Data) == 0 {
		return models.ImageAsset{}, errors.New("empty image")
	}
	token := uuid.NewString()
	return models.ImageAsset{
		Filename:   token + "." + up.Ext,
		ImageToken: token,
		ImageData:  up.Data,
		MimeType:   up.MimeType,
	}, nil
}

func (DatabaseStore) Owns(a models.ImageAsset) bool {
	return a.ImageToken != "" && a.PublicID == ""
}

// Delete is a no-op: the bytes go away with the row.
func (DatabaseStore) Delete(context.Context, models.ImageAsset) error { return nil }
