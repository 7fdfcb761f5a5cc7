package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chez-meme/config"
	"chez-meme/controllers"
	"chez-meme/routes"
	"chez-meme/services"
	"chez-meme/storage"
	"chez-meme/templates"
	"chez-meme/utils"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	utils.Log.EnableRollbar(cfg.RollbarToken, cfg.Env, version)
	defer utils.Log.Close()

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Database connect failed: %v", err)
	}
	log.Println("✅ Database connection established and migrations applied.")

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = services.SeedDefaults(seedCtx, db, services.SeedOptions{
		AdminUsername: cfg.Admin.Username,
		AdminEmail:    cfg.Admin.Email,
		AdminPassword: cfg.Admin.Password,
	})
	cancelSeed()
	if err != nil {
		log.Fatalf("❌ Seed failed: %v", err)
	}

	router, err := buildRouter(cfg, db)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// uploads of ten photos can take a while on a slow line
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s (%s)", addr, cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("⚠️  Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// buildNotifier enables every configured channel. With none configured the
// SMTP notifier only logs the message.
func buildNotifier(cfg *config.Config) services.Notifier {
	var channels services.MultiNotifier
	smtp := cfg.Mail.SMTP()
	if smtp.Configured() {
		channels = append(channels, services.NewSMTPNotifier(smtp, cfg.Mail.Recipients, cfg.BaseURL))
	}
	if cfg.Mail.SendGridAPIKey != "" {
		channels = append(channels, services.NewSendGridNotifier(
			cfg.Mail.SendGridAPIKey, cfg.Mail.FromName, cfg.Mail.Username, cfg.Mail.Recipients, cfg.BaseURL))
	}
	if cfg.Telegram.BotToken != "" {
		tg, err := services.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.BaseURL, "")
		if err != nil {
			utils.Log.Error("telegram notifications disabled: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if len(channels) == 0 {
		utils.Log.Warn("no notification channel configured; stay requests will only be logged")
		return services.NewSMTPNotifier(smtp, cfg.Mail.Recipients, cfg.BaseURL)
	}
	return channels
}

func buildRouter(cfg *config.Config, db *gorm.DB) (*gin.Engine, error) {
	store, err := storage.New(storage.Options{
		Backend:   cfg.Images.Storage,
		UploadDir: cfg.Images.UploadDir,
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := templates.Load()
	if err != nil {
		return nil, err
	}

	images := services.NewImagePipeline(store, services.ImageOptions{
		MaxWidth:    cfg.Images.MaxWidth,
		MaxBytes:    cfg.Images.MaxBytes,
		MaxPixels:   cfg.Images.MaxPixels,
		JPEGQuality: cfg.Images.JPEGQuality,
		Allowed:     cfg.Images.AllowedFormats,
	})
	reservations := services.NewReservationService(db, buildNotifier(cfg))
	activities := services.NewActivityService(db)
	distances := services.NewDistanceService(db, cfg.Routing.BaseURL, cfg.Routing.Delay)
	forecast := services.NewForecastService(db, services.ForecastOptions{
		Latitude:   cfg.Forecast.Latitude,
		Longitude:  cfg.Forecast.Longitude,
		Timezone:   cfg.Forecast.Timezone,
		Days:       cfg.Forecast.Days,
		TTL:        cfg.Forecast.TTL,
		WeatherURL: cfg.Forecast.WeatherURL,
		MarineURL:  cfg.Forecast.MarineURL,
	})
	photos := services.NewPhotoGallery(db, images, cfg.Images.MaxFiles)
	shame := services.NewShameGallery(db, images, cfg.Images.MaxFiles)
	board := services.NewLeaderboardGallery(db, images, cfg.Images.MaxFiles)
	sessions := services.NewSessionManager(cfg.SecretKey, cfg.SessionTTL)
	captcha := services.NewCaptchaVerifier(cfg.Captcha.Secret, cfg.Captcha.SiteKey, cfg.Captcha.VerifyURL)

	return routes.SetupRouter(routes.Deps{
		Pages: &controllers.PageController{
			Reservations: reservations,
			ActivitySvc:  activities,
			Forecast:     forecast,
			Photos:       photos,
			Shame:        shame,
			Board:        board,
		},
		Reservations: controllers.NewReservationController(reservations, captcha),
		Admin:        controllers.NewAdminController(reservations, activities, distances),
		Auth:         controllers.NewAuthController(services.NewAuthService(db), sessions, cfg.CookieSecure),
		Activities:   controllers.NewActivityController(activities),
		Media:        controllers.NewMediaController(services.NewImageService(db), forecast),
		Photos:       controllers.NewGalleryController(photos, cfg.Images.MaxBytes),
		Shame:        controllers.NewGalleryController(shame, cfg.Images.MaxBytes),
		Leaderboard:  controllers.NewGalleryController(board, cfg.Images.MaxBytes),
		Sessions:     sessions,
		Templates:    tmpl,
		CORSOrigins:  cfg.CORSOrigins,
		StaticDir:    cfg.StaticDir,
	}), nil
}
