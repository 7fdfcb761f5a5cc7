// models/reservation.go
package models

import "time"

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ValidStatus reports whether s is one of the reservation statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reservation is a stay on the calendar. Only approved reservations block dates.
type Reservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StartDate time.Time `gorm:"column:start_date;type:date;not null;index" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;type:date;not null;index" json:"end_date"`
	GuestName string    `gorm:"column:guest_name;size:100;not null" json:"guest_name"`
	Status    string    `gorm:"column:status;size:20;default:pending;index" json:"status"`
	Token     string    `gorm:"column:token;size:100;uniqueIndex;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Reservation) TableName() string { return "reservation" }

// Overlaps applies the half-open stay rule: the checkout day of one stay may be
// the arrival day of the next.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartDate.Before(end) && r.EndDate.After(start)
}

func (r Reservation) Nights() int {
	return int(r.EndDate.Sub(r.StartDate).Hours() / 24)
}
