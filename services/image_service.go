package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
	"gorm.io/gorm"

	"chez-meme/models"
	"chez-meme/storage"
)

var (
	ErrUnsupportedImage = errors.New("unsupported_image_format")
	ErrImageTooLarge    = errors.New("image_too_large")
	ErrInvalidImage     = errors.New("invalid_image")
	ErrImageNotFound    = errors.New("image_not_found")
)

type ImageOptions struct {
	MaxWidth    int
	MaxBytes    int64
	MaxPixels   int
	JPEGQuality int
	Allowed     []string
}

// DefaultMaxPixels caps the decoded size of an upload (40 MP).
const DefaultMaxPixels = 40_000_000

// ImagePipeline validates, shrinks and stores uploads without touching the
// disk on the way.
type ImagePipeline struct {
	Opts  ImageOptions
	Store storage.ImageStore
}

func NewImagePipeline(store storage.ImageStore, opts ImageOptions) *ImagePipeline {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 800
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 5 << 20
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 85
	}
	if len(opts.Allowed) == 0 {
		opts.Allowed = []string{"png", "jpg", "jpeg", "gif", "webp"}
	}
	return &ImagePipeline{Opts: opts, Store: store}
}

func (p *ImagePipeline) allowed(ext string) bool {
	for _, a := range p.Opts.Allowed {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}

func extOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Process stores one multipart file.
func (p *ImagePipeline) Process(ctx context.Context, fh *multipart.FileHeader) (models.ImageAsset, error) {
	ext := extOf(fh.Filename)
	if !p.allowed(ext) {
		return models.ImageAsset{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, fh.Filename)
	}
	if fh.Size > p.Opts.MaxBytes {
		return models.ImageAsset{}, fmt.Errorf("%w: %s", ErrImageTooLarge, fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return models.ImageAsset{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return p.ProcessReader(ctx, fh.Filename, f)
}

// ProcessReader is Process for data that did not come from a form.
func (p *ImagePipeline) ProcessReader(ctx context.Context, name string, r io.Reader) (models.ImageAsset, error) {
	ext := extOf(name)
	if !p.allowed(ext) {
		return models.ImageAsset{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, name)
	}
	data, err := io.ReadAll(io.LimitReader(r, p.Opts.MaxBytes+1))
	if err != nil {
		return models.ImageAsset{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.Opts.MaxBytes {
		return models.ImageAsset{}, fmt.Errorf("%w: %s", ErrImageTooLarge, name)
	}

	up, err := p.Resize(data, ext)
	if err != nil {
		return models.ImageAsset{}, err
	}
	return p.Store.Save(ctx, up)
}

// Resize decodes data and, when it is wider than MaxWidth, scales it down
// onto a white background and re-encodes it as JPEG. Narrow images keep
// their original bytes. The header is checked against MaxPixels before any
// pixel is decoded.
func (p *ImagePipeline) Resize(data []byte, ext string) (storage.Upload, error) {
	codec, ok := sniffCodec(data)
	if !ok {
		return storage.Upload{}, fmt.Errorf("%w: unknown image format", ErrInvalidImage)
	}
	cfg, err := codec.config(bytes.NewReader(data))
	if err != nil {
		return storage.Upload{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return storage.Upload{}, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(p.Opts.MaxPixels) {
		return storage.Upload{}, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	format := codec.name
	img, err := codec.decode(bytes.NewReader(data))
	if err != nil {
		return storage.Upload{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() <= p.Opts.MaxWidth {
		return storage.Upload{Data: data, MimeType: "image/" + format, Ext: normalizeExt(ext, format)}, nil
	}

	w := p.Opts.MaxWidth
	h := b.Dy() * w / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: p.Opts.JPEGQuality}); err != nil {
		return storage.Upload{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return storage.Upload{Data: buf.Bytes(), MimeType: "image/jpeg", Ext: "jpg"}, nil
}

type imageCodec struct {
	name   string
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var (
	pngCodec  = imageCodec{"png", png.DecodeConfig, png.Decode}
	jpegCodec = imageCodec{"jpeg", jpeg.DecodeConfig, jpeg.Decode}
	gifCodec  = imageCodec{"gif", gif.DecodeConfig, gif.Decode}
	webpCodec = imageCodec{"webp", webp.DecodeConfig, webp.Decode}
)

// sniffCodec picks the decoder from the magic bytes; the file name is not
// trusted.
func sniffCodec(data []byte) (imageCodec, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return pngCodec, true
	case bytes.HasPrefix(data, []byte("\xff\xd8")):
		return jpegCodec, true
	case bytes.HasPrefix(data, []byte("GIF8")):
		return gifCodec, true
	case len(data) > 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return webpCodec, true
	}
	return imageCodec{}, false
}

func normalizeExt(ext, format string) string {
	switch format {
	case "jpeg":
		if ext == "jpg" || ext == "jpeg" {
			return ext
		}
		return "jpg"
	default:
		return format
	}
}

// ---------------------------
// Serving stored bytes
// ---------------------------

type StoredImage struct {
	Data     []byte
	MimeType string
}

// ImageService finds database-stored pictures by token across every gallery.
type ImageService struct {
	DB *gorm.DB
}

func NewImageService(db *gorm.DB) *ImageService {
	return &ImageService{DB: db}
}

func (s *ImageService) Lookup(ctx context.Context, token string) (*StoredImage, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrImageNotFound
	}
	for _, model := range []interface{}{&models.Photo{}, &models.ShameEntry{}, &models.LeaderboardEntry{}} {
		var row models.ImageAsset
		err := s.DB.WithContext(ctx).Model(model).
			Select("image_data", "mime_type").
			Where("image_token = ?", token).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(row.ImageData) == 0 {
			return nil, ErrImageNotFound
		}
		mime := row.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		return &StoredImage{Data: row.ImageData, MimeType: mime}, nil
	}
	return nil, ErrImageNotFound
}
