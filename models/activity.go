package models

import "time"

type Activity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Distance     string    `gorm:"size:50" json:"distance"`
	Difficulty   string    `gorm:"size:20" json:"difficulty"`
	ActivityType string    `gorm:"column:activity_type;size:50;index" json:"activity_type"` // surf, vtt, randonnee, escalade
	ImageURL     string    `gorm:"column:image_url;size:200" json:"image_url"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Activity) TableName() string { return "activity" }

// SurfSpot is a beach reachable from the apartment. Distance and drive time
// come from the routing service and stay zero until computed.
type SurfSpot struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null;uniqueIndex:idx_spot_name_location" json:"name"`
	Location     string    `gorm:"size:100;uniqueIndex:idx_spot_name_location" json:"location"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	DistanceKm   float64   `gorm:"column:distance_km" json:"distance_km"`
	DriveMinutes int       `gorm:"column:drive_minutes" json:"drive_minutes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (SurfSpot) TableName() string { return "surf_spot" }
