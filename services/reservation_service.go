// services/reservation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chez-meme/models"
	"chez-meme/utils"
)

var (
	ErrInvalidRange        = errors.New("invalid_date_range")
	ErrPastDate            = errors.New("date_in_past")
	ErrInvalidGuestName    = errors.New("invalid_guest_name")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrRequestNotFound     = errors.New("request_not_found")
	ErrAlreadyProcessed    = errors.New("request_already_processed")
	ErrNotificationFailed  = errors.New("notification_failed")
)

// ConflictError is returned when the requested stay overlaps an approved one.
type ConflictError struct {
	Existing models.Reservation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("dates_taken: already booked by %s from %s to %s",
		e.Existing.GuestName, utils.FormatDate(e.Existing.StartDate), utils.FormatDate(e.Existing.EndDate))
}

// StayRequest is what a visitor submits from the public form.
type StayRequest struct {
	GuestName string
	Email     string
	Phone     string
	Message   string
	StartDate string
	EndDate   string
}

// ReservationInput is what an admin submits when adding or editing a stay.
type ReservationInput struct {
	GuestName string
	StartDate string
	EndDate   string
	Status    string
}

// Decision is the outcome of approving or rejecting a stay request.
type Decision struct {
	Request     models.PendingReservation
	Reservation *models.Reservation
}

type ReservationStats struct {
	Pending         int64                `json:"pending"`
	Approved        int64                `json:"approved"`
	Rejected        int64                `json:"rejected"`
	PendingRequests int64                `json:"pending_requests"`
	Upcoming        []models.Reservation `json:"upcoming"`
}

// ReservationService owns the calendar. Every path that can produce an
// approved reservation goes through writeMu and a transaction, so approved
// stays never overlap.
type ReservationService struct {
	DB       *gorm.DB
	Notifier Notifier
	Now      func() time.Time

	writeMu sync.Mutex
}

func NewReservationService(db *gorm.DB, notifier Notifier) *ReservationService {
	return &ReservationService{DB: db, Notifier: notifier, Now: time.Now}
}

func (s *ReservationService) today() time.Time {
	return utils.DateOnly(s.Now())
}

// parseStay validates the name and date range of a stay.
func (s *ReservationService) parseStay(name, startStr, endStr string, allowPast bool) (string, time.Time, time.Time, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return "", time.Time{}, time.Time{}, ErrInvalidGuestName
	}
	start, err := utils.ParseDate(startStr)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		return "", time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if !start.Before(end) {
		return "", time.Time{}, time.Time{}, ErrInvalidRange
	}
	if !allowPast && start.Before(s.today()) {
		return "", time.Time{}, time.Time{}, ErrPastDate
	}
	return name, start, end, nil
}

func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// FindConflict returns the first approved reservation overlapping [start, end),
// ignoring excludeID, or nil.
func FindConflict(tx *gorm.DB, start, end time.Time, excludeID uint) (*models.Reservation, error) {
	q := tx.Where("status = ? AND start_date < ? AND end_date > ?", models.StatusApproved, end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var existing models.Reservation
	if err := q.Order("start_date ASC").First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return &existing, nil
}

func checkConflict(tx *gorm.DB, start, end time.Time, excludeID uint) error {
	existing, err := FindConflict(tx, start, end, excludeID)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ConflictError{Existing: *existing}
	}
	return nil
}

// CheckAvailability reports the approved stay blocking [start, end), if any.
func (s *ReservationService) CheckAvailability(ctx context.Context, startStr, endStr string) (*models.Reservation, error) {
	start, err := utils.ParseDate(startStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}
	return FindConflict(s.DB.WithContext(ctx), start, end, 0)
}

// SubmitRequest records a visitor's stay request and notifies the admins.
// When the request is saved but nobody could be notified, the request is
// returned together with an error wrapping ErrNotificationFailed.
func (s *ReservationService) SubmitRequest(ctx context.Context, req StayRequest) (*models.PendingReservation, error) {
	name, start, end, err := s.parseStay(req.GuestName, req.StartDate, req.EndDate, false)
	if err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	if err := checkConflict(db, start, end, 0); err != nil {
		return nil, err
	}

	token, err := utils.GenerateURLToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	pending := models.PendingReservation{
		GuestName: name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Message:   strings.TrimSpace(req.Message),
		StartDate: start,
		EndDate:   end,
		Status:    models.StatusPending,
		Token:     token,
	}
	if err := db.Create(&pending).Error; err != nil {
		return nil, fmt.Errorf("failed to create stay request: %w", err)
	}
	utils.Log.Info("stay request #%d from %s (%s → %s)", pending.ID, pending.GuestName,
		utils.FormatDate(start), utils.FormatDate(end))

	if s.Notifier != nil {
		if nErr := s.Notifier.NotifyStayRequest(ctx, pending); nErr != nil {
			utils.Log.Error("stay request #%d saved but notification failed: %v", pending.ID, nErr)
			return &pending, fmt.Errorf("%w: %v", ErrNotificationFailed, nErr)
		}
	}
	return &pending, nil
}

func (s *ReservationService) ApproveRequestByToken(ctx context.Context, token string) (Decision, error) {
	return s.decide(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("token = ?", token) }, true)
}

func (s *ReservationService) RejectRequestByToken(ctx context.Context, token string) (Decision, error) {
	return s.decide(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("token = ?", token) }, false)
}

func (s *ReservationService) ApproveRequest(ctx context.Context, id uint) (Decision, error) {
	return s.decide(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("id = ?", id) }, true)
}

func (s *ReservationService) RejectRequest(ctx context.Context, id uint) (Decision, error) {
	return s.decide(ctx, func(tx *gorm.DB) *gorm.DB { return tx.Where("id = ?", id) }, false)
}

func (s *ReservationService) decide(ctx context.Context, scope func(*gorm.DB) *gorm.DB, approve bool) (Decision, error) {
	if approve {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	var out Decision
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.PendingReservation
		if err := scope(lockForUpdate(tx)).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.Status != models.StatusPending {
			out.Request = req
			return ErrAlreadyProcessed
		}

		now := s.Now().UTC()
		updates := map[string]interface{}{"decided_at": now}

		if approve {
			if err := checkConflict(tx, req.StartDate, req.EndDate, 0); err != nil {
				return err
			}
			token, err := utils.GenerateURLToken(32)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			res := models.Reservation{
				StartDate: req.StartDate,
				EndDate:   req.EndDate,
				GuestName: req.GuestName,
				Status:    models.StatusApproved,
				Token:     token,
			}
			if err := tx.Create(&res).Error; err != nil {
				return fmt.Errorf("failed to create reservation: %w", err)
			}
			out.Reservation = &res
			req.ReservationID = &res.ID
			req.Status = models.StatusApproved
			updates["reservation_id"] = res.ID
		} else {
			req.Status = models.StatusRejected
		}
		updates["status"] = req.Status
		req.DecidedAt = &now

		if err := tx.Model(&models.PendingReservation{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update stay request: %w", err)
		}
		out.Request = req
		return nil
	})
	if err != nil {
		return out, err
	}

	utils.Log.Info("stay request #%d of %s %s", out.Request.ID, out.Request.GuestName, out.Request.Status)
	return out, nil
}

// DeleteRequest removes a stay request regardless of its status.
func (s *ReservationService) DeleteRequest(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.PendingReservation{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete stay request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *ReservationService) ListPending(ctx context.Context) ([]models.PendingReservation, error) {
	var list []models.PendingReservation
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve stay requests: %w", err)
	}
	return list, nil
}

func (s *ReservationService) ListRequests(ctx context.Context) ([]models.PendingReservation, error) {
	var list []models.PendingReservation
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve stay requests: %w", err)
	}
	return list, nil
}

func (s *ReservationService) ListReservations(ctx context.Context) ([]models.Reservation, error) {
	var list []models.Reservation
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve reservations: %w", err)
	}
	return list, nil
}

func (s *ReservationService) ListApproved(ctx context.Context) ([]models.Reservation, error) {
	var list []models.Reservation
	if err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusApproved).
		Order("start_date ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve reservations: %w", err)
	}
	return list, nil
}

// CalendarDays maps every occupied night in [from, to) to the guest's name.
// The departure day of a stay is left free.
func (s *ReservationService) CalendarDays(ctx context.Context, from, to time.Time) (map[string]string, error) {
	from, to = utils.DateOnly(from), utils.DateOnly(to)

	var list []models.Reservation
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND start_date < ? AND end_date > ?", models.StatusApproved, to, from).
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve reservations: %w", err)
	}

	days := make(map[string]string)
	for _, r := range list {
		d := utils.DateOnly(r.StartDate)
		if d.Before(from) {
			d = from
		}
		end := utils.DateOnly(r.EndDate)
		if end.After(to) {
			end = to
		}
		for ; d.Before(end); d = d.AddDate(0, 0, 1) {
			days[utils.FormatDate(d)] = r.GuestName
		}
	}
	return days, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to retrieve reservation: %w", err)
	}
	return &r, nil
}

func normalizeStatus(status, def string) (string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return def, nil
	}
	if !models.ValidStatus(status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

// CreateReservation adds a stay from the dashboard. Admin-created stays are
// approved unless another status is given.
func (s *ReservationService) CreateReservation(ctx context.Context, in ReservationInput) (*models.Reservation, error) {
	status, err := normalizeStatus(in.Status, models.StatusApproved)
	if err != nil {
		return nil, err
	}
	name, start, end, err := s.parseStay(in.GuestName, in.StartDate, in.EndDate, false)
	if err != nil {
		return nil, err
	}
	token, err := utils.GenerateURLToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	r := models.Reservation{
		StartDate: start,
		EndDate:   end,
		GuestName: name,
		Status:    status,
		Token:     token,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status == models.StatusApproved {
			if err := checkConflict(tx, start, end, 0); err != nil {
				return err
			}
		}
		return tx.Create(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReservation edits a stay. Past dates are accepted so that finished
// stays can be corrected.
func (s *ReservationService) UpdateReservation(ctx context.Context, id uint, in ReservationInput) (*models.Reservation, error) {
	name, start, end, err := s.parseStay(in.GuestName, in.StartDate, in.EndDate, true)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var r models.Reservation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		status, err := normalizeStatus(in.Status, r.Status)
		if err != nil {
			return err
		}
		if status == models.StatusApproved {
			if err := checkConflict(tx, start, end, r.ID); err != nil {
				return err
			}
		}

		r.GuestName = name
		r.StartDate = start
		r.EndDate = end
		r.Status = status
		return tx.Save(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SetReservationStatus approves, rejects or reopens a stay. Approving checks
// the calendar again.
func (s *ReservationService) SetReservationStatus(ctx context.Context, id uint, status string) (*models.Reservation, error) {
	status, err := normalizeStatus(status, "")
	if err != nil || status == "" {
		return nil, ErrInvalidStatus
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var r models.Reservation
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if status == models.StatusApproved && r.Status != models.StatusApproved {
			if err := checkConflict(tx, r.StartDate, r.EndDate, r.ID); err != nil {
				return err
			}
		}
		r.Status = status
		return tx.Model(&r).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReservationService) DeleteReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		// requests keep their history but no longer point at a deleted stay
		if err := tx.Model(&models.PendingReservation{}).
			Where("reservation_id = ?", r.ID).
			Update("reservation_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReservationService) Stats(ctx context.Context) (ReservationStats, error) {
	var st ReservationStats
	db := s.DB.WithContext(ctx)

	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	if err := db.Model(&models.Reservation{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return st, fmt.Errorf("failed to count reservations: %w", err)
	}
	for _, r := range rows {
		switch r.Status {
		case models.StatusPending:
			st.Pending = r.Total
		case models.StatusApproved:
			st.Approved = r.Total
		case models.StatusRejected:
			st.Rejected = r.Total
		}
	}

	if err := db.Model(&models.PendingReservation{}).
		Where("status = ?", models.StatusPending).
		Count(&st.PendingRequests).Error; err != nil {
		return st, fmt.Errorf("failed to count stay requests: %w", err)
	}

	if err := db.Where("status = ? AND end_date > ?", models.StatusApproved, s.today()).
		Order("start_date ASC").
		Limit(5).
		Find(&st.Upcoming).Error; err != nil {
		return st, fmt.Errorf("failed to retrieve upcoming stays: %w", err)
	}
	return st, nil
}
