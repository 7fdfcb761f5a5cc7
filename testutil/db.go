// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chez-meme/config"
	"chez-meme/models"
	"chez-meme/utils"
)

// PrepareDB returns a migrated in-memory SQLite database private to t.
func PrepareDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(":memory:", "silent")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Date parses a YYYY-MM-DD literal or fails the test.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := utils.ParseDate(s)
	require.NoError(t, err)
	return d
}

// CreateReservation inserts a reservation row directly.
func CreateReservation(t *testing.T, db *gorm.DB, guest, start, end, status string) models.Reservation {
	t.Helper()
	token, err := utils.GenerateURLToken(16)
	require.NoError(t, err)
	r := models.Reservation{
		GuestName: guest,
		StartDate: Date(t, start),
		EndDate:   Date(t, end),
		Status:    status,
		Token:     token,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(&r).Error)
	return r
}

// CreateAdmin inserts an admin with a bcrypt hash of password.
func CreateAdmin(t *testing.T, db *gorm.DB, username, password string) models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	u := models.User{Username: username, Email: username + "@test.local", PasswordHash: hash, IsAdmin: true}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// FixedClock returns a Now function frozen at the given day, noon UTC.
func FixedClock(t *testing.T, day string) func() time.Time {
	d := Date(t, day).Add(12 * time.Hour)
	return func() time.Time { return d }
}
