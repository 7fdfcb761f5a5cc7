package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"chez-meme/models"
	"chez-meme/utils"
)

var ErrNoRoute = errors.New("no_route_found")

type Route struct {
	DistanceKm   float64 `json:"distance_km"`
	DriveMinutes int     `json:"drive_minutes"`
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// DistanceService asks an OSRM server for driving distances. The public
// demo server is rate limited, so calls are spaced and retried.
type DistanceService struct {
	DB         *gorm.DB
	BaseURL    string
	Client     *http.Client
	Limiter    *utils.RateLimiter
	MaxRetries int
	Backoff    time.Duration
}

func NewDistanceService(db *gorm.DB, baseURL string, delay time.Duration) *DistanceService {
	return &DistanceService{
		DB:         db,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
		Limiter:    utils.NewRateLimiter(delay),
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

func (s *DistanceService) Route(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (Route, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false&alternatives=false&steps=false",
		s.BaseURL, fromLng, fromLat, toLng, toLat)

	var out Route
	err := utils.RetryWithBackoff(ctx, s.MaxRetries, s.Backoff, func() error {
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}
		r, err := s.fetch(ctx, endpoint)
		if errors.Is(err, ErrNoRoute) {
			return utils.Permanent(err)
		}
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if errors.Is(err, ErrNoRoute) {
		return Route{}, ErrNoRoute
	}
	return out, err
}

func (s *DistanceService) fetch(ctx context.Context, endpoint string) (Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Route{}, fmt.Errorf("cannot build request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("HTTP error %d: %.100s", resp.StatusCode, string(body))
	}
	var or osrmResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return Route{}, fmt.Errorf("JSON parse error: %w", err)
	}
	if len(or.Routes) == 0 {
		return Route{}, ErrNoRoute
	}
	r := or.Routes[0]
	return Route{
		DistanceKm:   math.Round(r.Distance/100) / 10,
		DriveMinutes: int(r.Duration / 60),
	}, nil
}

// UpdateSurfSpots recomputes the drive from home to every surf spot. Spots
// that fail keep their previous values; the number of updated spots is
// returned with the joined errors.
func (s *DistanceService) UpdateSurfSpots(ctx context.Context) (int, error) {
	var spots []models.SurfSpot
	if err := s.DB.WithContext(ctx).Order("id").Find(&spots).Error; err != nil {
		return 0, fmt.Errorf("failed to retrieve surf spots: %w", err)
	}

	updated := 0
	var errs []error
	for _, spot := range spots {
		r, err := s.Route(ctx, Home.Lat, Home.Lng, spot.Lat, spot.Lng)
		if err != nil {
			utils.Log.Warn("no distance for %s (%s): %v", spot.Name, spot.Location, err)
			errs = append(errs, fmt.Errorf("%s: %w", spot.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if err := s.DB.WithContext(ctx).Model(&spot).Updates(map[string]interface{}{
			"distance_km":   r.DistanceKm,
			"drive_minutes": r.DriveMinutes,
		}).Error; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", spot.Name, err))
			continue
		}
		utils.Log.Info("%s (%s): %.1f km, %d min", spot.Name, spot.Location, r.DistanceKm, r.DriveMinutes)
		updated++
	}
	return updated, errors.Join(errs...)
}
