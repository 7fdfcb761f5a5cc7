package models

import "time"

// PendingReservation is a stay request submitted from the public form. It
// becomes a Reservation once an admin approves it.
type PendingReservation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	GuestName     string     `gorm:"column:guest_name;size:100;not null" json:"guest_name"`
	Email         string     `gorm:"column:email;size:120" json:"email,omitempty"`
	Phone         string     `gorm:"column:phone;size:40" json:"phone,omitempty"`
	Message       string     `gorm:"column:message;type:text" json:"message,omitempty"`
	StartDate     time.Time  `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate       time.Time  `gorm:"column:end_date;type:date;not null" json:"end_date"`
	Status        string     `gorm:"column:status;size:20;default:pending;index" json:"status"`
	Token         string     `gorm:"column:token;size:100;uniqueIndex;not null" json:"-"`
	ReservationID *uint      `gorm:"column:reservation_id;index" json:"reservation_id,omitempty"`
	DecidedAt     *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (PendingReservation) TableName() string { return "reservation_pending" }
