package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"chez-meme/models"
	"chez-meme/utils"
)

// CloudinaryStore uploads images to a Cloudinary folder and hands out signed
// delivery URLs.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	Folder string
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	if folder == "" {
		folder = "chez_meme"
	}
	return &CloudinaryStore{cld: cld, Folder: folder}, nil
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Save(ctx context.Context, up Upload) (models.ImageAsset, error) {
	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(up.Data), uploader.UploadParams{
		Folder:         s.Folder,
		ResourceType:   "image",
		Format:         "jpg",
		UniqueFilename: api.Bool(true),
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
	})
	if err != nil {
		return models.ImageAsset{}, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return models.ImageAsset{}, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}

	url, err := s.SignedURL(res.PublicID)
	if err != nil {
		utils.Log.Warn("cloudinary: could not sign %s, using secure URL: %v", res.PublicID, err)
		url = res.SecureURL
	}
	return models.ImageAsset{
		Filename: res.PublicID,
		PublicID: res.PublicID,
		ImageURL: url,
		MimeType: "image/jpeg",
	}, nil
}

// SignedURL builds a signed delivery URL with automatic quality.
func (s *CloudinaryStore) SignedURL(publicID string) (string, error) {
	img, err := s.cld.Image(publicID)
	if err != nil {
		return "", err
	}
	img.Transformation = "q_auto"
	img.Config.URL.SignURL = true
	return img.String()
}

func (s *CloudinaryStore) Owns(a models.ImageAsset) bool {
	return a.PublicID != ""
}

func (s *CloudinaryStore) Delete(ctx context.Context, a models.ImageAsset) error {
	res, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:   a.PublicID,
		Invalidate: api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if res.Error.Message != "" {
		return errors.New("cloudinary destroy: " + res.Error.Message)
	}
	return nil
}
