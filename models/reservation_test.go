package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func TestReservationOverlaps(t *testing.T) {
	r := Reservation{StartDate: day("2030-07-05"), EndDate: day("2030-07-10")}

	tests := []struct {
		start, end string
		want       bool
	}{
		{"2030-07-01", "2030-07-05", false}, // leaves on arrival day
		{"2030-07-10", "2030-07-12", false}, // arrives on checkout day
		{"2030-07-01", "2030-07-06", true},
		{"2030-07-06", "2030-07-08", true},
		{"2030-07-01", "2030-07-20", true},
		{"2030-07-09", "2030-07-11", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Overlaps(day(tt.start), day(tt.end)), "%s → %s", tt.start, tt.end)
	}
}

func TestReservationNights(t *testing.T) {
	r := Reservation{StartDate: day("2030-03-28"), EndDate: day("2030-04-04")}
	assert.Equal(t, 7, r.Nights())
	assert.True(t, ValidStatus(StatusApproved))
	assert.False(t, ValidStatus("cancelled"))
}

func TestImageAssetURL(t *testing.T) {
	assert.Equal(t, "https://cdn/x.jpg", ImageAsset{ImageURL: "https://cdn/x.jpg", ImageToken: "t"}.URL())
	assert.Equal(t, "/images/t", ImageAsset{ImageToken: "t", Filename: "a.jpg"}.URL())
	assert.Equal(t, "/static/uploads/images/a.jpg", ImageAsset{Filename: "a.jpg"}.URL())
	assert.Equal(t, "/static/images/b.jpg", ImageAsset{Filename: "/static/images/b.jpg"}.URL())
	assert.Empty(t, ImageAsset{}.URL())
}
