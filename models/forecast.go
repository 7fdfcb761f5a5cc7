package models

import (
	"time"

	"gorm.io/datatypes"
)

// ForecastSnapshot keeps the last successful upstream forecast so pages still
// render when the weather API is down.
type ForecastSnapshot struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Kind      string         `gorm:"size:32;uniqueIndex" json:"kind"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	FetchedAt time.Time      `gorm:"column:fetched_at" json:"fetched_at"`
}

func (ForecastSnapshot) TableName() string { return "forecast_snapshot" }
