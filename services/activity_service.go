package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"chez-meme/models"
)

var (
	ErrActivityNotFound = errors.New("activity_not_found")
	ErrInvalidActivity  = errors.New("invalid_activity")
	ErrSpotNotFound     = errors.New("surf_spot_not_found")
)

type ActivityInput struct {
	Name         string `json:"name" form:"name" binding:"required"`
	Description  string `json:"description" form:"description"`
	Distance     string `json:"distance" form:"distance"`
	Difficulty   string `json:"difficulty" form:"difficulty"`
	ActivityType string `json:"activity_type" form:"activity_type"`
	ImageURL     string `json:"image_url" form:"image_url"`
}

func (in ActivityInput) apply(a *models.Activity) error {
	a.Name = strings.TrimSpace(in.Name)
	if a.Name == "" || len([]rune(a.Name)) > 100 {
		return ErrInvalidActivity
	}
	a.Description = strings.TrimSpace(in.Description)
	a.Distance = strings.TrimSpace(in.Distance)
	a.Difficulty = strings.TrimSpace(in.Difficulty)
	a.ActivityType = strings.ToLower(strings.TrimSpace(in.ActivityType))
	a.ImageURL = strings.TrimSpace(in.ImageURL)
	return nil
}

type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

// List returns activities, optionally restricted to one activity type.
func (s *ActivityService) List(ctx context.Context, activityType string) ([]models.Activity, error) {
	q := s.DB.WithContext(ctx).Order("activity_type ASC, name ASC")
	if t := strings.ToLower(strings.TrimSpace(activityType)); t != "" {
		q = q.Where("activity_type = ?", t)
	}
	var list []models.Activity
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve activities: %w", err)
	}
	return list, nil
}

func (s *ActivityService) Get(ctx context.Context, id uint) (*models.Activity, error) {
	var a models.Activity
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *ActivityService) Create(ctx context.Context, in ActivityInput) (*models.Activity, error) {
	var a models.Activity
	if err := in.apply(&a); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return &a, nil
}

func (s *ActivityService) Update(ctx context.Context, id uint, in ActivityInput) (*models.Activity, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(a); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(a).Error; err != nil {
		return nil, fmt.Errorf("failed to update activity: %w", err)
	}
	return a, nil
}

func (s *ActivityService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Activity{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete activity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrActivityNotFound
	}
	return nil
}

// Types lists the distinct activity types in use.
func (s *ActivityService) Types(ctx context.Context) ([]string, error) {
	var types []string
	err := s.DB.WithContext(ctx).Model(&models.Activity{}).
		Where("activity_type <> ''").
		Distinct().
		Order("activity_type").
		Pluck("activity_type", &types).Error
	return types, err
}

// SurfSpots returns spots closest first; spots without a computed distance
// come last.
func (s *ActivityService) SurfSpots(ctx context.Context) ([]models.SurfSpot, error) {
	var spots []models.SurfSpot
	err := s.DB.WithContext(ctx).
		Order("CASE WHEN distance_km > 0 THEN 0 ELSE 1 END, distance_km ASC, name ASC").
		Find(&spots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve surf spots: %w", err)
	}
	return spots, nil
}
