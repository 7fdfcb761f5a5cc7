package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gorm.io/gorm"

	"chez-meme/models"
	"chez-meme/utils"
)

var (
	ErrPictureNotFound = errors.New("picture_not_found")
	ErrNoFiles         = errors.New("no_files")
	ErrTooManyFiles    = errors.New("too_many_files")
	ErrInvalidScore    = errors.New("invalid_score")
)

// GalleryItem is any of the picture tables.
type GalleryItem interface {
	models.Photo | models.ShameEntry | models.LeaderboardEntry
	Asset() models.ImageAsset
	PictureID() uint
}

// UploadItem is one file of a gallery upload with its form metadata.
type UploadItem struct {
	File    *multipart.FileHeader
	Caption string
	Title   string
	Name    string
	Score   int
}

type UploadFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type UploadResult[T GalleryItem] struct {
	Created []T             `json:"created"`
	Skipped []UploadFailure `json:"skipped"`
}

// GalleryService manages one picture table. build turns a stored upload into
// a row of that table.
type GalleryService[T GalleryItem] struct {
	DB       *gorm.DB
	Images   *ImagePipeline
	MaxFiles int
	build    func(item UploadItem, asset models.ImageAsset, order int) T
}

func newGallery[T GalleryItem](db *gorm.DB, images *ImagePipeline, maxFiles int,
	build func(UploadItem, models.ImageAsset, int) T) *GalleryService[T] {
	if maxFiles <= 0 {
		maxFiles = 10
	}
	return &GalleryService[T]{DB: db, Images: images, MaxFiles: maxFiles, build: build}
}

func NewPhotoGallery(db *gorm.DB, images *ImagePipeline, maxFiles int) *GalleryService[models.Photo] {
	return newGallery(db, images, maxFiles, func(it UploadItem, a models.ImageAsset, order int) models.Photo {
		return models.Photo{Picture: models.Picture{Caption: it.Caption, DisplayOrder: order, ImageAsset: a}}
	})
}

func NewShameGallery(db *gorm.DB, images *ImagePipeline, maxFiles int) *GalleryService[models.ShameEntry] {
	return newGallery(db, images, maxFiles, func(it UploadItem, a models.ImageAsset, order int) models.ShameEntry {
		return models.ShameEntry{
			Picture: models.Picture{Caption: it.Caption, DisplayOrder: order, ImageAsset: a},
			Title:   strings.TrimSpace(it.Title),
		}
	})
}

func NewLeaderboardGallery(db *gorm.DB, images *ImagePipeline, maxFiles int) *GalleryService[models.LeaderboardEntry] {
	return newGallery(db, images, maxFiles, func(it UploadItem, a models.ImageAsset, order int) models.LeaderboardEntry {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			name = it.Caption
		}
		return models.LeaderboardEntry{
			Picture: models.Picture{Caption: it.Caption, DisplayOrder: order, ImageAsset: a},
			Name:    name,
			Score:   it.Score,
		}
	})
}

func (s *GalleryService[T]) List(ctx context.Context) ([]T, error) {
	var list []T
	if err := s.DB.WithContext(ctx).
		Omit("image_data").
		Order("display_order ASC, created_at ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve pictures: %w", err)
	}
	return list, nil
}

func (s *GalleryService[T]) Get(ctx context.Context, id uint) (*T, error) {
	var item T
	if err := s.DB.WithContext(ctx).Omit("image_data").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPictureNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Upload stores every accepted file and appends it to the gallery. Files
// the pipeline rejects are reported in Skipped and do not fail the batch.
func (s *GalleryService[T]) Upload(ctx context.Context, items []UploadItem) (UploadResult[T], error) {
	res := UploadResult[T]{Created: []T{}, Skipped: []UploadFailure{}}
	if len(items) == 0 {
		return res, ErrNoFiles
	}
	if len(items) > s.MaxFiles {
		return res, fmt.Errorf("%w: at most %d files per upload", ErrTooManyFiles, s.MaxFiles)
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(new(T)).Count(&count).Error; err != nil {
		return res, fmt.Errorf("failed to count pictures: %w", err)
	}

	for _, it := range items {
		if it.File == nil {
			continue
		}
		asset, err := s.Images.Process(ctx, it.File)
		if err != nil {
			utils.Log.Warn("upload of %s skipped: %v", it.File.Filename, err)
			res.Skipped = append(res.Skipped, UploadFailure{Filename: it.File.Filename, Reason: err.Error()})
			continue
		}
		if strings.TrimSpace(it.Caption) == "" {
			it.Caption = strings.TrimSuffix(it.File.Filename, filepath.Ext(it.File.Filename))
		}

		row := s.build(it, asset, int(count))
		if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
			if dErr := s.Images.Store.Delete(ctx, asset); dErr != nil {
				utils.Log.Warn("orphan image %s left in %s: %v", asset.Filename, s.Images.Store.Name(), dErr)
			}
			return res, fmt.Errorf("failed to save picture: %w", err)
		}
		count++
		res.Created = append(res.Created, row)
	}
	return res, nil
}

func (s *GalleryService[T]) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	r := s.DB.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if r.Error != nil {
		return fmt.Errorf("failed to update picture: %w", r.Error)
	}
	if r.RowsAffected == 0 {
		return ErrPictureNotFound
	}
	return nil
}

func (s *GalleryService[T]) UpdateCaption(ctx context.Context, id uint, caption string) error {
	return s.update(ctx, id, map[string]interface{}{"caption": strings.TrimSpace(caption)})
}

// Reorder sets display_order to each id's position in ids.
func (s *GalleryService[T]) Reorder(ctx context.Context, ids []uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			r := tx.Model(new(T)).Where("id = ?", id).Update("display_order", i)
			if r.Error != nil {
				return r.Error
			}
			if r.RowsAffected == 0 {
				return fmt.Errorf("%w: %d", ErrPictureNotFound, id)
			}
		}
		return nil
	})
}

// Delete removes the stored image, then the row.
func (s *GalleryService[T]) Delete(ctx context.Context, id uint) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Images.Store.Delete(ctx, (*item).Asset()); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if err := s.DB.WithContext(ctx).Delete(new(T), id).Error; err != nil {
		return fmt.Errorf("failed to delete picture: %w", err)
	}
	return nil
}

// ---------------------------
// Shame + leaderboard extras
// ---------------------------

func UpdateShameTitle(ctx context.Context, g *GalleryService[models.ShameEntry], id uint, title, caption string) error {
	return g.update(ctx, id, map[string]interface{}{
		"title":   strings.TrimSpace(title),
		"caption": strings.TrimSpace(caption),
	})
}

type RankedEntry struct {
	Rank int `json:"rank"`
	models.LeaderboardEntry
}

// UpdateLeaderboardEntry changes a contestant's name, score and caption.
func UpdateLeaderboardEntry(ctx context.Context, g *GalleryService[models.LeaderboardEntry], id uint, name string, score int, caption string) error {
	if score < 0 {
		return ErrInvalidScore
	}
	return g.update(ctx, id, map[string]interface{}{
		"name":    strings.TrimSpace(name),
		"score":   score,
		"caption": strings.TrimSpace(caption),
	})
}

// Ranking orders the leaderboard by score, best first. Ties share a rank.
func Ranking(entries []models.LeaderboardEntry) []RankedEntry {
	sorted := make([]models.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].DisplayOrder < sorted[j].DisplayOrder
	})

	out := make([]RankedEntry, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 && e.Score == sorted[i-1].Score {
			rank = out[i-1].Rank
		}
		out[i] = RankedEntry{Rank: rank, LeaderboardEntry: e}
	}
	return out
}

// ---------------------------
// Legacy uploads directory
// ---------------------------

// ReloadPhotos rebuilds the photo table from the image files found in dir.
// Existing photo rows are replaced; captions default to "Photo N".
func ReloadPhotos(ctx context.Context, db *gorm.DB, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch extOf(e.Name()) {
		case "jpg", "jpeg", "png", "gif", "webp":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return 0, nil
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Photo{}).Error; err != nil {
			return err
		}
		photos := make([]models.Photo, len(names))
		for i, name := range names {
			photos[i] = models.Photo{Picture: models.Picture{
				Caption:      fmt.Sprintf("Photo %d", i+1),
				DisplayOrder: i,
				ImageAsset:   models.ImageAsset{Filename: name},
			}}
		}
		return tx.Create(&photos).Error
	})
	if err != nil {
		return 0, fmt.Errorf("reload photos: %w", err)
	}
	return len(names), nil
}
