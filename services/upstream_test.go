package services

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chez-meme/models"
	"chez-meme/testutil"
)

// ---------------------------
// Captcha
// ---------------------------

func TestCaptchaVerifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("response") {
		case "good":
			assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))
			_, _ = io.WriteString(w, `{"success":true,"hostname":"chez-meme.fr"}`)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = io.WriteString(w, `{"success":false,"error-codes":["invalid-input-response"]}`)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	v := NewCaptchaVerifier("s3cret", "site", srv.URL)
	assert.True(t, v.Enabled())
	assert.NoError(t, v.Verify(ctx, "good", "203.0.113.9"))
	assert.ErrorIs(t, v.Verify(ctx, "bad", ""), ErrCaptchaFailed)
	assert.ErrorIs(t, v.Verify(ctx, "  ", ""), ErrCaptchaFailed)

	err := v.Verify(ctx, "broken", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCaptchaFailed)

	var disabled *CaptchaVerifier
	assert.False(t, disabled.Enabled())
	assert.NoError(t, disabled.Verify(ctx, "", ""))
	assert.NoError(t, NewCaptchaVerifier("", "", srv.URL).Verify(ctx, "", ""))
}

// ---------------------------
// Forecast
// ---------------------------

const weatherJSON = `{
  "daily": {
    "time": ["2030-07-01", "2030-07-02"],
    "weather_code": [0, 63],
    "temperature_2m_max": [27.5, 21.0],
    "temperature_2m_min": [17.1, null],
    "wind_speed_10m_max": [12.0, 30.5]
  }
}`

const marineJSON = `{
  "daily": {
    "time": ["2030-07-01", "2030-07-02"],
    "wave_height_max": [1.4, 2.2],
    "wave_period_max": [9.5, null]
  },
  "hourly": {
    "time": ["2030-07-01T00:00", "2030-07-01T01:00", "2030-07-01T02:00", "2030-07-01T03:00", "2030-07-01T04:00"],
    "sea_level_height_msl": [0.1, 1.2, 0.4, -0.8, 0.0]
  }
}`

type forecastUpstream struct {
	weatherCalls atomic.Int32
	failWeather  atomic.Bool
	failMarine   atomic.Bool
}

func (u *forecastUpstream) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Europe/Paris", r.URL.Query().Get("timezone"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/weather":
			u.weatherCalls.Add(1)
			if u.failWeather.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, weatherJSON)
		case "/marine":
			if u.failMarine.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, marineJSON)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newForecast(t *testing.T, srv *httptest.Server) (*ForecastService, *time.Time) {
	now := time.Date(2030, 7, 1, 8, 0, 0, 0, time.UTC)
	s := NewForecastService(testutil.PrepareDB(t), ForecastOptions{
		Latitude:   43.47,
		Longitude:  -1.55,
		Timezone:   "Europe/Paris",
		Days:       2,
		TTL:        30 * time.Minute,
		WeatherURL: srv.URL + "/weather",
		MarineURL:  srv.URL + "/marine",
	})
	s.Now = func() time.Time { return now }
	return s, &now
}

func TestForecastGet(t *testing.T) {
	up := &forecastUpstream{}
	s, _ := newForecast(t, up.server(t))

	f, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, f.Stale)
	require.Len(t, f.Days, 2)
	assert.Equal(t, "Ciel dégagé", f.Days[0].Summary)
	assert.Equal(t, 27.5, f.Days[0].TempMax)
	assert.Equal(t, "Pluie", f.Days[1].Summary)
	require.NotNil(t, f.Days[0].WaveHeightMax)
	assert.Equal(t, 1.4, *f.Days[0].WaveHeightMax)
	assert.Nil(t, f.Days[1].WavePeriodMax)
	require.Len(t, f.Tides, 2)
	assert.Equal(t, "high", f.Tides[0].Kind)
	assert.Equal(t, "low", f.Tides[1].Kind)

	// served from cache
	_, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, up.weatherCalls.Load())

	var snap models.ForecastSnapshot
	require.NoError(t, s.DB.Where("kind = ?", "surf").First(&snap).Error)
}

func TestForecastFallsBackToSnapshot(t *testing.T) {
	up := &forecastUpstream{}
	s, now := newForecast(t, up.server(t))
	ctx := context.Background()

	_, err := s.Get(ctx)
	require.NoError(t, err)

	up.failWeather.Store(true)
	*now = now.Add(time.Hour)

	f, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, f.Stale)
	assert.Len(t, f.Days, 2)
}

func TestForecastUnavailable(t *testing.T) {
	up := &forecastUpstream{}
	up.failWeather.Store(true)
	s, _ := newForecast(t, up.server(t))

	_, err := s.Get(context.Background())
	assert.ErrorIs(t, err, ErrForecastUnavailable)
}

func TestForecastWithoutMarine(t *testing.T) {
	up := &forecastUpstream{}
	up.failMarine.Store(true)
	s, _ := newForecast(t, up.server(t))

	f, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.Days, 2)
	assert.Empty(t, f.Tides)
	assert.Nil(t, f.Days[0].WaveHeightMax)
}

func TestFindTides(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	times := []string{"t0", "t1", "t2", "t3", "t4", "t5"}

	got := FindTides(times, []*float64{f(0), f(1), f(1), f(0), nil, f(2)})
	require.Len(t, got, 1)
	assert.Equal(t, TideEvent{Time: "t1", Kind: "high", HeightM: 1}, got[0])

	assert.Empty(t, FindTides(times[:2], []*float64{f(0), f(1)}))
	assert.Empty(t, FindTides(times, nil))
}

func TestWeatherSummary(t *testing.T) {
	assert.Equal(t, "Ciel dégagé", WeatherSummary(0))
	assert.Equal(t, "Couvert", WeatherSummary(3))
	assert.Equal(t, "Averses", WeatherSummary(81))
}

// ---------------------------
// Distances
// ---------------------------

func TestDistanceRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/route/v1/driving/"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[{"distance":23456.0,"duration":1530.0}]}`)
	}))
	defer srv.Close()

	s := NewDistanceService(nil, srv.URL+"/", 0)
	r, err := s.Route(context.Background(), 43.47, -1.55, 43.67, -1.44)
	require.NoError(t, err)
	assert.Equal(t, Route{DistanceKm: 23.5, DriveMinutes: 25}, r)
}

func TestDistanceNoRoute(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"code":"NoRoute","routes":[]}`)
	}))
	defer srv.Close()

	s := NewDistanceService(nil, srv.URL, 0)
	s.Backoff = time.Millisecond
	_, err := s.Route(context.Background(), 0, 0, 1, 1)
	assert.ErrorIs(t, err, ErrNoRoute)
	assert.EqualValues(t, 1, calls.Load(), "no route is not retried")
}

func TestUpdateSurfSpots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Zumaia has no route, the others are 10 km away
		if strings.Contains(r.URL.Path, "-2.24") {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"code":"Ok","routes":[{"distance":10000,"duration":900}]}`)
	}))
	defer srv.Close()

	db := testutil.PrepareDB(t)
	require.NoError(t, db.Create(&[]models.SurfSpot{
		{Name: "La Barre", Location: "Anglet", Lat: 43.52, Lng: -1.51},
		{Name: "Roca Puta", Location: "Zumaia (Espagne)", Lat: 43.30, Lng: -2.24},
	}).Error)

	s := NewDistanceService(db, srv.URL, 0)
	s.Backoff = time.Millisecond
	n, err := s.UpdateSurfSpots(context.Background())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Roca Puta")

	var spot models.SurfSpot
	require.NoError(t, db.Where("name = ?", "La Barre").First(&spot).Error)
	assert.Equal(t, 10.0, spot.DistanceKm)
	assert.Equal(t, 15, spot.DriveMinutes)
}
