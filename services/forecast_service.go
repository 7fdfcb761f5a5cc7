package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chez-meme/models"
	"chez-meme/utils"
)

var ErrForecastUnavailable = errors.New("forecast_unavailable")

const forecastSnapshotKind = "surf"

type DailyForecast struct {
	Date          string   `json:"date"`
	WeatherCode   int      `json:"weather_code"`
	Summary       string   `json:"summary"`
	TempMin       float64  `json:"temp_min"`
	TempMax       float64  `json:"temp_max"`
	WindMaxKmh    float64  `json:"wind_max_kmh"`
	WaveHeightMax *float64 `json:"wave_height_max,omitempty"`
	WavePeriodMax *float64 `json:"wave_period_max,omitempty"`
}

type TideEvent struct {
	Time    string  `json:"time"`
	Kind    string  `json:"kind"` // high, low
	HeightM float64 `json:"height_m"`
}

type Forecast struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Timezone  string          `json:"timezone"`
	Days      []DailyForecast `json:"days"`
	Tides     []TideEvent     `json:"tides"`
	FetchedAt time.Time       `json:"fetched_at"`
	Stale     bool            `json:"stale"`
}

type ForecastOptions struct {
	Latitude   float64
	Longitude  float64
	Timezone   string
	Days       int
	TTL        time.Duration
	WeatherURL string
	MarineURL  string
}

// ForecastService serves the weather and tide forecast for the apartment.
// Results are cached for TTL; the last good result is kept in the database
// and served flagged as stale when Open-Meteo cannot be reached.
type ForecastService struct {
	DB     *gorm.DB
	Client *http.Client
	Opts   ForecastOptions
	Now    func() time.Time

	mu      sync.Mutex
	cached  *Forecast
	expires time.Time
	group   singleflight.Group
}

func NewForecastService(db *gorm.DB, opts ForecastOptions) *ForecastService {
	if opts.Days <= 0 {
		opts.Days = 5
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	return &ForecastService{
		DB:     db,
		Client: &http.Client{Timeout: 15 * time.Second},
		Opts:   opts,
		Now:    time.Now,
	}
}

func (s *ForecastService) Get(ctx context.Context) (*Forecast, error) {
	s.mu.Lock()
	if s.cached != nil && s.Now().Before(s.expires) {
		f := *s.cached
		s.mu.Unlock()
		return &f, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("forecast", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	if err == nil {
		f := *(v.(*Forecast))
		utils.Log.Debug("forecast refreshed, %d days", len(f.Days))
		return &f, nil
	}

	utils.Log.Warn("forecast refresh failed: %v", err)
	snap, sErr := s.loadSnapshot(ctx)
	if sErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}
	snap.Stale = true
	return snap, nil
}

func (s *ForecastService) refresh(ctx context.Context) (*Forecast, error) {
	var weather weatherResponse
	err := utils.RetryWithBackoff(ctx, 2, 500*time.Millisecond, func() error {
		return s.fetchJSON(ctx, s.Opts.WeatherURL, url.Values{
			"daily": {"weather_code,temperature_2m_max,temperature_2m_min,wind_speed_10m_max"},
		}, &weather)
	})
	if err != nil {
		return nil, fmt.Errorf("weather: %w", err)
	}

	f := &Forecast{
		Latitude:  s.Opts.Latitude,
		Longitude: s.Opts.Longitude,
		Timezone:  s.Opts.Timezone,
		Days:      weather.days(),
		Tides:     []TideEvent{},
		FetchedAt: s.Now().UTC(),
	}

	var marine marineResponse
	if s.Opts.MarineURL != "" {
		mErr := s.fetchJSON(ctx, s.Opts.MarineURL, url.Values{
			"daily":  {"wave_height_max,wave_period_max"},
			"hourly": {"sea_level_height_msl"},
		}, &marine)
		if mErr != nil {
			// the weather alone is still worth showing
			utils.Log.Warn("marine forecast failed: %v", mErr)
		} else {
			marine.mergeInto(f.Days)
			f.Tides = FindTides(marine.Hourly.Time, marine.Hourly.SeaLevel)
		}
	}

	s.mu.Lock()
	s.cached = f
	s.expires = s.Now().Add(s.Opts.TTL)
	s.mu.Unlock()

	if err := s.saveSnapshot(ctx, f); err != nil {
		utils.Log.Warn("could not persist forecast snapshot: %v", err)
	}
	return f, nil
}

func (s *ForecastService) fetchJSON(ctx context.Context, base string, extra url.Values, out interface{}) error {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.Opts.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(s.Opts.Longitude, 'f', -1, 64))
	q.Set("timezone", s.Opts.Timezone)
	q.Set("forecast_days", strconv.Itoa(s.Opts.Days))
	for k, v := range extra {
		q[k] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("cannot build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("JSON parse error: %w", err)
	}
	return nil
}

func (s *ForecastService) saveSnapshot(ctx context.Context, f *Forecast) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	snap := models.ForecastSnapshot{
		Kind:      forecastSnapshotKind,
		Payload:   datatypes.JSON(payload),
		FetchedAt: f.FetchedAt,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "fetched_at"}),
	}).Create(&snap).Error
}

func (s *ForecastService) loadSnapshot(ctx context.Context) (*Forecast, error) {
	var snap models.ForecastSnapshot
	if err := s.DB.WithContext(ctx).Where("kind = ?", forecastSnapshotKind).First(&snap).Error; err != nil {
		return nil, err
	}
	var f Forecast
	if err := json.Unmarshal(snap.Payload, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ---------------------------
// Open-Meteo payloads
// ---------------------------

type weatherResponse struct {
	Daily struct {
		Time        []string   `json:"time"`
		WeatherCode []*int     `json:"weather_code"`
		TempMax     []*float64 `json:"temperature_2m_max"`
		TempMin     []*float64 `json:"temperature_2m_min"`
		WindMax     []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

func (w weatherResponse) days() []DailyForecast {
	d := w.Daily
	out := make([]DailyForecast, 0, len(d.Time))
	for i, date := range d.Time {
		day := DailyForecast{Date: date}
		if code := at(d.WeatherCode, i); code != nil {
			day.WeatherCode = *code
		}
		day.Summary = WeatherSummary(day.WeatherCode)
		if v := at(d.TempMin, i); v != nil {
			day.TempMin = *v
		}
		if v := at(d.TempMax, i); v != nil {
			day.TempMax = *v
		}
		if v := at(d.WindMax, i); v != nil {
			day.WindMaxKmh = *v
		}
		out = append(out, day)
	}
	return out
}

type marineResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		WaveHeightMax []*float64 `json:"wave_height_max"`
		WavePeriodMax []*float64 `json:"wave_period_max"`
	} `json:"daily"`
	Hourly struct {
		Time     []string   `json:"time"`
		SeaLevel []*float64 `json:"sea_level_height_msl"`
	} `json:"hourly"`
}

func (m marineResponse) mergeInto(days []DailyForecast) {
	idx := make(map[string]int, len(m.Daily.Time))
	for i, date := range m.Daily.Time {
		idx[date] = i
	}
	for i := range days {
		j, ok := idx[days[i].Date]
		if !ok {
			continue
		}
		days[i].WaveHeightMax = at(m.Daily.WaveHeightMax, j)
		days[i].WavePeriodMax = at(m.Daily.WavePeriodMax, j)
	}
}

func at[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

// FindTides turns an hourly sea level series into high and low water events:
// every local maximum is a high tide and every local minimum a low tide.
// Gaps in the series break the comparison.
func FindTides(times []string, levels []*float64) []TideEvent {
	n := len(times)
	if len(levels) < n {
		n = len(levels)
	}
	events := []TideEvent{}
	for i := 1; i < n-1; i++ {
		prev, cur, next := levels[i-1], levels[i], levels[i+1]
		if prev == nil || cur == nil || next == nil {
			continue
		}
		switch {
		case *cur > *prev && *cur >= *next:
			events = append(events, TideEvent{Time: times[i], Kind: "high", HeightM: *cur})
		case *cur < *prev && *cur <= *next:
			events = append(events, TideEvent{Time: times[i], Kind: "low", HeightM: *cur})
		}
	}
	return events
}

// WeatherSummary describes a WMO weather code in French.
func WeatherSummary(code int) string {
	switch {
	case code == 0:
		return "Ciel dégagé"
	case code <= 2:
		return "Éclaircies"
	case code == 3:
		return "Couvert"
	case code == 45 || code == 48:
		return "Brouillard"
	case code >= 51 && code <= 57:
		return "Bruine"
	case code >= 61 && code <= 67:
		return "Pluie"
	case code >= 71 && code <= 77:
		return "Neige"
	case code >= 80 && code <= 82:
		return "Averses"
	case code >= 85 && code <= 86:
		return "Averses de neige"
	case code >= 95:
		return "Orage"
	default:
		return "Variable"
	}
}
