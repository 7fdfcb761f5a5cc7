package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ImageAsset describes where the bytes of an uploaded picture live. Exactly one
// of ImageData (database), PublicID (CDN) or Filename (uploads dir) is the
// source of truth.
type ImageAsset struct {
	Filename   string `gorm:"column:filename;size:200" json:"filename,omitempty"`
	ImageToken string `gorm:"column:image_token;size:64;index" json:"image_token,omitempty"`
	ImageData  []byte `gorm:"column:image_data" json:"-"`
	MimeType   string `gorm:"column:mime_type;size:50" json:"mime_type,omitempty"`
	PublicID   string `gorm:"column:public_id;size:200" json:"-"`
	ImageURL   string `gorm:"column:image_url;size:500" json:"-"`
}

// URL returns the address a browser should load the picture from.
func (a ImageAsset) URL() string {
	switch {
	case a.ImageURL != "":
		return a.ImageURL
	case a.ImageToken != "":
		return "/images/" + a.ImageToken
	case a.Filename != "":
		if strings.HasPrefix(a.Filename, "/") || strings.HasPrefix(a.Filename, "http") {
			return a.Filename
		}
		return "/static/uploads/images/" + a.Filename
	}
	return ""
}

type Picture struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Caption      string    `gorm:"size:200" json:"caption"`
	DisplayOrder int       `gorm:"column:display_order;default:0;index" json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	PublicURL    string    `gorm:"-" json:"url"`
	ImageAsset
}

func (p *Picture) AfterFind(tx *gorm.DB) error {
	p.PublicURL = p.ImageAsset.URL()
	return nil
}

func (p *Picture) AfterSave(tx *gorm.DB) error {
	p.PublicURL = p.ImageAsset.URL()
	return nil
}

func (p Picture) Asset() ImageAsset { return p.ImageAsset }
func (p Picture) PictureID() uint   { return p.ID }

// Photo belongs to the apartment gallery shown on the home page.
type Photo struct {
	Picture
}

func (Photo) TableName() string { return "photo" }

type ShameEntry struct {
	Picture
	Title string `gorm:"size:120" json:"title"`
}

func (ShameEntry) TableName() string { return "wall_of_shame" }

type LeaderboardEntry struct {
	Picture
	Name  string `gorm:"size:100" json:"name"`
	Score int    `gorm:"default:0;index" json:"score"`
}

func (LeaderboardEntry) TableName() string { return "leaderboard" }
