package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chez-meme/models"
	"chez-meme/testutil"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []models.PendingReservation
	err   error
}

func (f *fakeNotifier) NotifyStayRequest(_ context.Context, req models.PendingReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.err
}

func newReservationService(t *testing.T) (*ReservationService, *fakeNotifier) {
	t.Helper()
	n := &fakeNotifier{}
	s := NewReservationService(testutil.PrepareDB(t), n)
	s.Now = testutil.FixedClock(t, "2030-06-01")
	return s, n
}

func submit(t *testing.T, s *ReservationService, guest, start, end string) *models.PendingReservation {
	t.Helper()
	req, err := s.SubmitRequest(context.Background(), StayRequest{GuestName: guest, StartDate: start, EndDate: end})
	require.NoError(t, err)
	return req
}

func TestSubmitRequest(t *testing.T) {
	s, n := newReservationService(t)
	ctx := context.Background()

	req, err := s.SubmitRequest(ctx, StayRequest{
		GuestName: "  Jeanne ",
		Email:     "jeanne@example.com",
		StartDate: "2030-07-01",
		EndDate:   "2030-07-08",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jeanne", req.GuestName)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.NotEmpty(t, req.Token)
	require.Len(t, n.calls, 1)
	assert.Equal(t, req.ID, n.calls[0].ID)

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSubmitRequestValidation(t *testing.T) {
	s, n := newReservationService(t)

	tests := []struct {
		name    string
		req     StayRequest
		wantErr error
	}{
		{name: "short name", req: StayRequest{GuestName: "J", StartDate: "2030-07-01", EndDate: "2030-07-02"}, wantErr: ErrInvalidGuestName},
		{name: "end before start", req: StayRequest{GuestName: "Jo", StartDate: "2030-07-05", EndDate: "2030-07-01"}, wantErr: ErrInvalidRange},
		{name: "zero nights", req: StayRequest{GuestName: "Jo", StartDate: "2030-07-05", EndDate: "2030-07-05"}, wantErr: ErrInvalidRange},
		{name: "bad date", req: StayRequest{GuestName: "Jo", StartDate: "05/07/2030", EndDate: "2030-07-08"}, wantErr: ErrInvalidRange},
		{name: "past", req: StayRequest{GuestName: "Jo", StartDate: "2030-05-30", EndDate: "2030-06-03"}, wantErr: ErrPastDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitRequest(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, n.calls)
}

func TestSubmitRequestConflicts(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	testutil.CreateReservation(t, s.DB, "Paul", "2030-07-10", "2030-07-15", models.StatusApproved)
	testutil.CreateReservation(t, s.DB, "Marie", "2030-08-01", "2030-08-05", models.StatusPending)

	_, err := s.SubmitRequest(ctx, StayRequest{GuestName: "Jo", StartDate: "2030-07-12", EndDate: "2030-07-20"})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Paul", conflict.Existing.GuestName)

	// arrival on the departure day of the previous stay
	submit(t, s, "Jo", "2030-07-15", "2030-07-18")
	// departure on the arrival day of the next stay
	submit(t, s, "Lu", "2030-07-05", "2030-07-10")
	// pending reservations do not block
	submit(t, s, "Max", "2030-08-02", "2030-08-04")
}

func TestSubmitRequestNotificationFailure(t *testing.T) {
	s, n := newReservationService(t)
	n.err = errors.New("smtp down")

	req, err := s.SubmitRequest(context.Background(), StayRequest{GuestName: "Jo", StartDate: "2030-07-01", EndDate: "2030-07-03"})
	assert.ErrorIs(t, err, ErrNotificationFailed)
	require.NotNil(t, req)
	assert.NotZero(t, req.ID)

	var count int64
	require.NoError(t, s.DB.Model(&models.PendingReservation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestApproveRequestByToken(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	req := submit(t, s, "Jeanne", "2030-07-01", "2030-07-08")

	d, err := s.ApproveRequestByToken(ctx, req.Token)
	require.NoError(t, err)
	require.NotNil(t, d.Reservation)
	assert.Equal(t, models.StatusApproved, d.Request.Status)
	assert.Equal(t, models.StatusApproved, d.Reservation.Status)
	assert.Equal(t, "Jeanne", d.Reservation.GuestName)
	require.NotNil(t, d.Request.ReservationID)
	assert.Equal(t, d.Reservation.ID, *d.Request.ReservationID)

	_, err = s.ApproveRequestByToken(ctx, req.Token)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	_, err = s.RejectRequestByToken(ctx, req.Token)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = s.ApproveRequestByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	approved, err := s.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestRejectRequest(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	req := submit(t, s, "Jeanne", "2030-07-01", "2030-07-08")

	d, err := s.RejectRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, d.Request.Status)
	assert.Nil(t, d.Reservation)
	assert.NotNil(t, d.Request.DecidedAt)

	approved, err := s.ListApproved(ctx)
	require.NoError(t, err)
	assert.Empty(t, approved)
}

func TestApproveOverlappingRequests(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	first := submit(t, s, "Jeanne", "2030-07-01", "2030-07-08")
	second := submit(t, s, "Paul", "2030-07-05", "2030-07-10")

	_, err := s.ApproveRequest(ctx, first.ID)
	require.NoError(t, err)

	_, err = s.ApproveRequest(ctx, second.ID)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Jeanne", conflict.Existing.GuestName)

	// the losing request stays pending so the hosts can reject it
	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestConcurrentApprovals(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()

	var reqs []*models.PendingReservation
	for _, name := range []string{"Ana", "Ben", "Cal", "Dee", "Eve"} {
		reqs = append(reqs, submit(t, s, name, "2030-09-01", "2030-09-05"))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, errs[i] = s.ApproveRequestByToken(ctx, token)
		}(i, r.Token)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var conflict *ConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, ok)

	approved, err := s.ListApproved(ctx)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestAdminReservationCRUD(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()

	r, err := s.CreateReservation(ctx, ReservationInput{GuestName: "Famille", StartDate: "2030-07-01", EndDate: "2030-07-10"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, r.Status)

	_, err = s.CreateReservation(ctx, ReservationInput{GuestName: "Autre", StartDate: "2030-07-09", EndDate: "2030-07-12"})
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	pending, err := s.CreateReservation(ctx, ReservationInput{GuestName: "Autre", StartDate: "2030-07-09", EndDate: "2030-07-12", Status: "pending"})
	require.NoError(t, err)

	_, err = s.CreateReservation(ctx, ReservationInput{GuestName: "Passé", StartDate: "2030-05-01", EndDate: "2030-05-03"})
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = s.CreateReservation(ctx, ReservationInput{GuestName: "Autre", StartDate: "2030-10-01", EndDate: "2030-10-03", Status: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// moving a stay over itself is not a conflict
	r, err = s.UpdateReservation(ctx, r.ID, ReservationInput{GuestName: "Famille", StartDate: "2030-07-02", EndDate: "2030-07-09"})
	require.NoError(t, err)
	assert.Equal(t, "2030-07-02", r.StartDate.Format("2006-01-02"))

	// finished stays can be corrected
	_, err = s.UpdateReservation(ctx, r.ID, ReservationInput{GuestName: "Famille", StartDate: "2030-05-02", EndDate: "2030-05-09"})
	require.NoError(t, err)

	_, err = s.UpdateReservation(ctx, 999, ReservationInput{GuestName: "Famille", StartDate: "2030-07-02", EndDate: "2030-07-09"})
	assert.ErrorIs(t, err, ErrReservationNotFound)

	got, err := s.SetReservationStatus(ctx, pending.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	_, err = s.SetReservationStatus(ctx, pending.ID, "")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	deleted, err := s.DeleteReservation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, deleted.ID)
	_, err = s.GetReservation(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestSetReservationStatusConflict(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	testutil.CreateReservation(t, s.DB, "Paul", "2030-07-10", "2030-07-15", models.StatusApproved)
	other := testutil.CreateReservation(t, s.DB, "Marie", "2030-07-12", "2030-07-14", models.StatusPending)

	_, err := s.SetReservationStatus(ctx, other.ID, models.StatusApproved)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	got, err := s.SetReservationStatus(ctx, other.ID, models.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestDeleteReservationDetachesRequest(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	req := submit(t, s, "Jeanne", "2030-07-01", "2030-07-08")
	d, err := s.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)

	_, err = s.DeleteReservation(ctx, d.Reservation.ID)
	require.NoError(t, err)

	var got models.PendingReservation
	require.NoError(t, s.DB.First(&got, req.ID).Error)
	assert.Nil(t, got.ReservationID)
	assert.Equal(t, models.StatusApproved, got.Status)

	require.NoError(t, s.DeleteRequest(ctx, req.ID))
	assert.ErrorIs(t, s.DeleteRequest(ctx, req.ID), ErrRequestNotFound)
}

func TestCalendarDays(t *testing.T) {
	s, _ := newReservationService(t)
	testutil.CreateReservation(t, s.DB, "Paul", "2030-06-30", "2030-07-03", models.StatusApproved)
	testutil.CreateReservation(t, s.DB, "Marie", "2030-07-03", "2030-07-04", models.StatusApproved)
	testutil.CreateReservation(t, s.DB, "Rejeté", "2030-07-05", "2030-07-08", models.StatusRejected)

	days, err := s.CalendarDays(context.Background(), testutil.Date(t, "2030-07-01"), testutil.Date(t, "2030-08-01"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"2030-07-01": "Paul",
		"2030-07-02": "Paul",
		"2030-07-03": "Marie",
	}, days)
}

func TestCheckAvailability(t *testing.T) {
	s, _ := newReservationService(t)
	ctx := context.Background()
	testutil.CreateReservation(t, s.DB, "Paul", "2030-07-10", "2030-07-15", models.StatusApproved)

	r, err := s.CheckAvailability(ctx, "2030-07-14", "2030-07-16")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Paul", r.GuestName)

	r, err = s.CheckAvailability(ctx, "2030-07-15", "2030-07-16")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = s.CheckAvailability(ctx, "2030-07-16", "2030-07-15")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestStats(t *testing.T) {
	s, _ := newReservationService(t)
	testutil.CreateReservation(t, s.DB, "Old", "2030-01-01", "2030-01-05", models.StatusApproved)
	testutil.CreateReservation(t, s.DB, "Paul", "2030-07-10", "2030-07-15", models.StatusApproved)
	testutil.CreateReservation(t, s.DB, "Marie", "2030-08-10", "2030-08-15", models.StatusRejected)
	testutil.CreateReservation(t, s.DB, "Lou", "2030-09-10", "2030-09-15", models.StatusPending)
	submit(t, s, "Jeanne", "2030-10-01", "2030-10-08")

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Approved)
	assert.EqualValues(t, 1, st.Rejected)
	assert.EqualValues(t, 1, st.Pending)
	assert.EqualValues(t, 1, st.PendingRequests)
	require.Len(t, st.Upcoming, 1)
	assert.Equal(t, "Paul", st.Upcoming[0].GuestName)
}
