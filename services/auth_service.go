package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"chez-meme/models"
	"chez-meme/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_already_exists")
	ErrWeakPassword       = errors.New("password_too_short")
	ErrInvalidSession     = errors.New("invalid_session")
)

const minPasswordLength = 8

type AuthService struct {
	DB *gorm.DB
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{DB: db}
}

func (s *AuthService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Authenticate checks an admin's credentials. Hashes left by the previous
// deployment are upgraded to bcrypt on the first successful login.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsAdmin {
		return nil, ErrInvalidCredentials
	}

	ok, needsRehash, err := utils.CheckPassword(u.PasswordHash, password)
	if err != nil {
		utils.Log.Warn("user %s has an unreadable password hash: %v", u.Username, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if needsRehash {
		if hash, hErr := utils.HashPassword(password); hErr == nil {
			if uErr := s.DB.WithContext(ctx).Model(u).Update("password_hash", hash).Error; uErr != nil {
				utils.Log.Warn("could not upgrade password hash of %s: %v", u.Username, uErr)
			} else {
				u.PasswordHash = hash
				utils.Log.Info("password hash of %s upgraded to bcrypt", u.Username)
			}
		}
	}
	return u, nil
}

func (s *AuthService) SetPassword(ctx context.Context, username, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	u, err := s.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.DB.WithContext(ctx).Model(u).Update("password_hash", hash).Error
}

// CreateAdmin inserts a new admin account.
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := models.User{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if err := s.DB.WithContext(ctx).Create(&u).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	return &u, nil
}

// EnsureAdmin creates the admin account, or rotates its password and makes
// sure it still has admin rights. created reports which one happened.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (u *models.User, created bool, err error) {
	existing, err := s.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		u, err = s.CreateAdmin(ctx, username, email, password)
		return u, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}

	if len(password) < minPasswordLength {
		return nil, false, ErrWeakPassword
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}
	updates := map[string]interface{}{"password_hash": hash, "is_admin": true}
	if email = strings.TrimSpace(email); email != "" {
		updates["email"] = email
	}
	if err := s.DB.WithContext(ctx).Model(existing).Updates(updates).Error; err != nil {
		return nil, false, fmt.Errorf("failed to update admin: %w", err)
	}
	return existing, false, nil
}

// ForceAdmin drops every account named username and creates a fresh one.
func (s *AuthService) ForceAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	err := s.DB.WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		Delete(&models.User{}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to remove old admin: %w", err)
	}
	return s.CreateAdmin(ctx, username, email, password)
}

func (s *AuthService) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).Where("is_admin = ?", true).Count(&n).Error
	return n, err
}

// ---------------------------
// Sessions
// ---------------------------

const SessionCookieName = "chez_meme_session"

type SessionClaims struct {
	UserID  uint `json:"uid"`
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies the signed admin session cookie value.
type SessionManager struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionManager{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

func (m *SessionManager) Issue(u *models.User) (string, error) {
	now := m.Now()
	claims := SessionClaims{
		UserID:  u.ID,
		IsAdmin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *SessionManager) Parse(token string) (*SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return &claims, nil
}
