package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chez-meme/models"
	"chez-meme/utils"
)

// Home is where every drive starts.
var Home = struct{ Lat, Lng float64 }{43.47007441987446, -1.5502231105144162}

var DefaultActivities = []models.Activity{
	{
		Name:         "Plage de la Côte Sauvage",
		Description:  "Magnifique plage pour le surf avec des vagues parfaites pour débuter",
		Distance:     "5 km",
		Difficulty:   "Facile",
		ActivityType: "surf",
		ImageURL:     "/static/images/surf.jpg",
	},
	{
		Name:         "Forêt de Fontainebleau",
		Description:  "Parcours VTT dans les sentiers forestiers avec des dénivelés variés",
		Distance:     "15 km",
		Difficulty:   "Intermédiaire",
		ActivityType: "vtt",
		ImageURL:     "/static/images/vtt.jpg",
	},
	{
		Name:         "Sentier des Crêtes",
		Description:  "Randonnée panoramique avec vue sur la vallée et les montagnes",
		Distance:     "8 km",
		Difficulty:   "Facile",
		ActivityType: "randonnee",
		ImageURL:     "/static/images/randonnee.jpg",
	},
	{
		Name:         "Rocher de l'Aigle",
		Description:  "Site d'escalade réputé avec des voies de tous niveaux",
		Distance:     "12 km",
		Difficulty:   "Difficile",
		ActivityType: "escalade",
		ImageURL:     "/static/images/escalade.jpg",
	},
}

var DefaultSurfSpots = []models.SurfSpot{
	{Name: "Grande Plage", Location: "Biarritz", Lat: 43.48505622591267, Lng: -1.5574765227972476},
	{Name: "Côte des Basques", Location: "Biarritz", Lat: 43.47564359716611, Lng: -1.5664002921277527},
	{Name: "Chambre d'Amour", Location: "Anglet", Lat: 43.49427252956886, Lng: -1.5456154571455343},
	{Name: "Uhabia", Location: "Bidart", Lat: 43.43108738144451, Lng: -1.5989006378043706},
	{Name: "Parlementia", Location: "Guéthary", Lat: 43.427723562362054, Lng: -1.6068852440572812},
	{Name: "Hendaye Plage", Location: "Hendaye", Lat: 43.3735961088257, Lng: -1.7742203280832838},
	{Name: "Santocha", Location: "Capbreton", Lat: 43.64702883230817, Lng: -1.4426945771349413},
	{Name: "La Gravière", Location: "Hossegor", Lat: 43.6737751398771, Lng: -1.4391911691273902},
	{Name: "Le Penon", Location: "Seignosse", Lat: 43.709888795671304, Lng: -1.4339030135463402},
	{Name: "Roca Puta", Location: "Zumaia (Espagne)", Lat: 43.30547054811386, Lng: -2.240322543271815},
}

type SeedOptions struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// SeedDefaults makes sure an admin exists and fills the activity and surf
// spot tables when they are empty. When no admin password is configured and
// no admin exists yet, a random one is generated and returned.
func SeedDefaults(ctx context.Context, db *gorm.DB, opts SeedOptions) (generated string, err error) {
	auth := NewAuthService(db)

	switch {
	case opts.AdminPassword != "":
		_, created, err := auth.EnsureAdmin(ctx, opts.AdminUsername, opts.AdminEmail, opts.AdminPassword)
		if err != nil {
			return "", fmt.Errorf("seed admin: %w", err)
		}
		if created {
			utils.Log.Info("admin %s created", opts.AdminUsername)
		} else {
			utils.Log.Info("admin %s password synchronised", opts.AdminUsername)
		}
	default:
		_, err := auth.FindByUsername(ctx, opts.AdminUsername)
		if errors.Is(err, ErrUserNotFound) {
			generated, err = utils.GenerateURLToken(12)
			if err != nil {
				return "", err
			}
			if _, err := auth.CreateAdmin(ctx, opts.AdminUsername, opts.AdminEmail, generated); err != nil {
				return "", fmt.Errorf("seed admin: %w", err)
			}
			// the password stays on stdout; warnings are forwarded to rollbar
			utils.Log.Info("admin %s created with password %s", opts.AdminUsername, generated)
			utils.Log.Warn("ADMIN_MDP is not set; admin %s created with a generated password, see stdout", opts.AdminUsername)
		} else if err != nil {
			return "", fmt.Errorf("seed admin: %w", err)
		}
	}

	if err := seedTable(ctx, db, &models.Activity{}, DefaultActivities); err != nil {
		return generated, fmt.Errorf("seed activities: %w", err)
	}
	if err := seedTable(ctx, db, &models.SurfSpot{}, DefaultSurfSpots); err != nil {
		return generated, fmt.Errorf("seed surf spots: %w", err)
	}
	return generated, nil
}

func seedTable[T any](ctx context.Context, db *gorm.DB, model *T, rows []T) error {
	var n int64
	if err := db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	batch := make([]T, len(rows))
	copy(batch, rows)
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		return err
	}
	utils.Log.Info("seeded %d %T rows", len(batch), *model)
	return nil
}
