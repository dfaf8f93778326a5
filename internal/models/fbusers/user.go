package fbusers

import (
	"context"
	"errors"
	"strings"
	"time"

	"funnelboard/internal/models/fbconfig"
	"funnelboard/internal/models/fberrors"

	"github.com/andskur/argon2-hashing"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	RoleAdmin      = "admin"
	MinPassLength  = 8
	defaultSeedName = "Admin"
)

var ErrBadCredentials = errors.New("invalid email or password")

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Role         string    `gorm:"size:50;not null" json:"role"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func Models() []any {
	return []any{&User{}}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		return nil, fberrors.Validation("email, password and name are required")
	}
	if len(in.Password) < MinPassLength {
		return nil, fberrors.Validation("password must be at least %d characters", MinPassLength)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fberrors.Internal("check email", err)
	}
	if count > 0 {
		return nil, fberrors.Conflict("email %s already registered", email)
	}

	hash, err := argon2.GenerateFromPassword([]byte(in.Password), argon2.DefaultParams)
	if err != nil {
		return nil, fberrors.Internal("hash password", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fberrors.FromDB("user", err)
	}

	log.Info().Uint("user_id", u.ID).Str("email", u.Email).Msg("user registered")
	return u, nil
}

// Authenticate returns ErrBadCredentials for an unknown email, a wrong
// password or a disabled account alike.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fberrors.Internal("load user", err)
	}
	if !u.IsActive {
		return nil, ErrBadCredentials
	}
	if err := argon2.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return &u, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, fberrors.FromDB("user", err)
	}
	return &u, nil
}

// SeedAdmin creates the configured operator the first time, from the argon2
// hash stored in the configuration file.
func (s *Service) SeedAdmin(ctx context.Context, cfg fbconfig.UserConfig) (*User, error) {
	email := normalizeEmail(cfg.Login)
	if email == "" || cfg.Hash == "" {
		return nil, nil
	}

	var u User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fberrors.Internal("load seed user", err)
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultSeedName
	}
	u = User{
		Email:        email,
		PasswordHash: cfg.Hash,
		Name:         name,
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fberrors.FromDB("user", err)
	}
	log.Info().Str("email", email).Msg("seed user created")
	return &u, nil
}
