package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"chez-meme/utils"
)

type Config struct {
	Env          string        `env:"APP_ENV" envDefault:"development"`
	Port         string        `env:"PORT" envDefault:"5000"`
	BaseURL      string        `env:"BASE_URL" envDefault:"http://localhost:5000"`
	SecretKey    string        `env:"SECRET_KEY" envDefault:"chez-meme-super-secret-key-development-only"`
	DatabaseURL  string        `env:"DATABASE_URL" envDefault:"sqlite:///chez_meme.db"`
	DBLogLevel   string        `env:"DB_LOG_LEVEL" envDefault:"warn"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:","`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"12h"`
	RollbarToken string        `env:"ROLLBAR_TOKEN"`
	StaticDir    string        `env:"STATIC_DIR" envDefault:"static"`

	Admin      AdminConfig      `envPrefix:"ADMIN_"`
	Mail       MailConfig       `envPrefix:"EMAIL_"`
	Telegram   TelegramConfig   `envPrefix:"TELEGRAM_"`
	Captcha    CaptchaConfig    `envPrefix:"CAPTCHA_"`
	Cloudinary CloudinaryConfig `envPrefix:"CLOUDINARY_"`
	Images     ImageConfig      `envPrefix:"IMAGE_"`
	Forecast   ForecastConfig   `envPrefix:"FORECAST_"`
	Routing    RoutingConfig    `envPrefix:"OSRM_"`
}

type AdminConfig struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Email    string `env:"EMAIL" envDefault:"admin@chez-meme.com"`
	Password string `env:"MDP"`
}

type MailConfig struct {
	SMTPServer     string   `env:"SMTP_SERVER" envDefault:"smtp.gmail.com"`
	SMTPPort       int      `env:"SMTP_PORT" envDefault:"587"`
	Username       string   `env:"USERNAME"`
	Password       string   `env:"PASSWORD"`
	FromName       string   `env:"FROM_NAME" envDefault:"Chez Mémé"`
	Recipients     []string `env:"RECIPIENTS" envSeparator:","`
	SendGridAPIKey string   `env:"SENDGRID_API_KEY"`
}

func (m MailConfig) SMTP() utils.SMTPConfig {
	return utils.SMTPConfig{
		Host:     m.SMTPServer,
		Port:     m.SMTPPort,
		Username: m.Username,
		Password: m.Password,
		FromName: m.FromName,
	}
}

type TelegramConfig struct {
	BotToken string `env:"BOT_TOKEN"`
	ChatID   int64  `env:"CHAT_ID"`
}

type CaptchaConfig struct {
	SiteKey   string `env:"SITE_KEY"`
	Secret    string `env:"SECRET"`
	VerifyURL string `env:"VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
}

type CloudinaryConfig struct {
	CloudName string `env:"CLOUD_NAME"`
	APIKey    string `env:"API_KEY"`
	APISecret string `env:"API_SECRET"`
	Folder    string `env:"FOLDER" envDefault:"chez_meme"`
}

func (c CloudinaryConfig) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type ImageConfig struct {
	Storage        string   `env:"STORAGE" envDefault:"auto"` // auto, database, cloudinary, filesystem
	UploadDir      string   `env:"UPLOAD_DIR" envDefault:"static/uploads/images"`
	MaxWidth       int      `env:"MAX_WIDTH" envDefault:"800"`
	MaxBytes       int64    `env:"MAX_BYTES" envDefault:"5242880"`
	MaxPixels      int      `env:"MAX_PIXELS" envDefault:"40000000"`
	MaxFiles       int      `env:"MAX_FILES" envDefault:"10"`
	JPEGQuality    int      `env:"JPEG_QUALITY" envDefault:"85"`
	AllowedFormats []string `env:"ALLOWED_EXTENSIONS" envSeparator:"," envDefault:"png,jpg,jpeg,gif,webp"`
}

type ForecastConfig struct {
	Latitude   float64       `env:"LAT" envDefault:"43.47007441987446"`
	Longitude  float64       `env:"LNG" envDefault:"-1.5502231105144162"`
	Timezone   string        `env:"TIMEZONE" envDefault:"Europe/Paris"`
	Days       int           `env:"DAYS" envDefault:"5"`
	TTL        time.Duration `env:"TTL" envDefault:"30m"`
	WeatherURL string        `env:"WEATHER_URL" envDefault:"https://api.open-meteo.com/v1/forecast"`
	MarineURL  string        `env:"MARINE_URL" envDefault:"https://marine-api.open-meteo.com/v1/marine"`
}

type RoutingConfig struct {
	BaseURL string        `env:"URL" envDefault:"http://router.project-osrm.org"`
	Delay   time.Duration `env:"DELAY" envDefault:"500ms"`
}

// Load reads .env (optional) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env not found or couldn't load it; continuing with environment variables")
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
