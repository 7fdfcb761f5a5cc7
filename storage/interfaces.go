package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chez-meme/models"
	"chez-meme/utils"
)

var ErrUnknownBackend = errors.New("unknown image storage backend")

// Upload is an already processed image ready to be stored.
type Upload struct {
	Data     []byte
	MimeType string
	Ext      string // without dot, e.g. "jpg"
}

// ImageStore persists processed images.
type ImageStore interface {
	Name() string
	Save(ctx context.Context, up Upload) (models.ImageAsset, error)
	// Owns reports whether the asset's bytes live in this store.
	Owns(asset models.ImageAsset) bool
	Delete(ctx context.Context, asset models.ImageAsset) error
}

// Options selects and configures the backends.
type Options struct {
	Backend   string // auto, database, cloudinary, filesystem
	UploadDir string

	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

func (o Options) cloudinaryConfigured() bool {
	return o.CloudName != "" && o.APIKey != "" && o.APISecret != ""
}

// Chain saves with its primary store and deletes from whichever store owns
// an asset, so pictures uploaded under a previous backend can still be removed.
type Chain struct {
	Primary ImageStore
	All     []ImageStore
}

var _ ImageStore = (*Chain)(nil)

func (c *Chain) Name() string { return c.Primary.Name() }

func (c *Chain) Save(ctx context.Context, up Upload) (models.ImageAsset, error) {
	return c.Primary.Save(ctx, up)
}

func (c *Chain) Owns(asset models.ImageAsset) bool {
	for _, s := range c.All {
		if s.Owns(asset) {
			return true
		}
	}
	return false
}

func (c *Chain) Delete(ctx context.Context, asset models.ImageAsset) error {
	for _, s := range c.All {
		if s.Owns(asset) {
			return s.Delete(ctx, asset)
		}
	}
	return nil
}

// New builds the store chain described by opts.
func New(opts Options) (*Chain, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" || backend == "auto" {
		backend = "database"
		if opts.cloudinaryConfigured() {
			backend = "cloudinary"
		}
	}

	db := NewDatabaseStore()
	fs := NewFilesystemStore(opts.UploadDir)
	chain := &Chain{All: []ImageStore{db, fs}}

	var cloud *CloudinaryStore
	if opts.cloudinaryConfigured() {
		var err error
		cloud, err = NewCloudinaryStore(opts.CloudName, opts.APIKey, opts.APISecret, opts.Folder)
		if err != nil {
			return nil, err
		}
		chain.All = append(chain.All, cloud)
	}

	switch backend {
	case "database":
		chain.Primary = db
	case "filesystem":
		chain.Primary = fs
	case "cloudinary":
		if cloud == nil {
			return nil, fmt.Errorf("%w: cloudinary selected but CLOUDINARY_* is not configured", ErrUnknownBackend)
		}
		chain.Primary = cloud
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}

	utils.Log.Info("image storage: %s", chain.Primary.Name())
	return chain, nil
}
