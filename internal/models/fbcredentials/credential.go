package fbcredentials

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"funnelboard/internal/models/fberrors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const ServiceSkalePay = "skalepay"

// Credential holds the API access of an external service.
type Credential struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Service   string    `gorm:"size:100;not null;index" json:"service"`
	APIKey    string    `gorm:"type:text;not null" json:"api_key"`
	APISecret string    `gorm:"type:text" json:"api_secret"`
	APIURL    string    `gorm:"size:500" json:"api_url"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedBy *uint     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func Models() []any {
	return []any{&Credential{}}
}

// MarshalJSON masks the key and the secret.
func (c Credential) MarshalJSON() ([]byte, error) {
	type plain Credential
	out := struct {
		plain
		APIKey    *string `json:"api_key"`
		APISecret *string `json:"api_secret"`
	}{plain: plain(c)}

	if c.APIKey != "" {
		masked := MaskKey(c.APIKey)
		out.APIKey = &masked
	}
	if c.APISecret != "" {
		masked := "***"
		out.APISecret = &masked
	}
	return json.Marshal(out)
}

// MaskKey keeps the first ten characters of a key.
func MaskKey(key string) string {
	runes := []rune(key)
	if len(runes) > 10 {
		runes = runes[:10]
	}
	return string(runes) + "..."
}

type Input struct {
	Name      string `json:"name"`
	Service   string `json:"service"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	APIURL    string `json:"api_url"`
	IsActive  *bool  `json:"is_active"`
}

type Patch struct {
	Name      *string `json:"name"`
	Service   *string `json:"service"`
	APIKey    *string `json:"api_key"`
	APISecret *string `json:"api_secret"`
	APIURL    *string `json:"api_url"`
	IsActive  *bool   `json:"is_active"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(ctx context.Context) ([]Credential, error) {
	creds := []Credential{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&creds).Error; err != nil {
		return nil, fberrors.Internal("list credentials", err)
	}
	return creds, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*Credential, error) {
	var c Credential
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, fberrors.FromDB("credential", err)
	}
	return &c, nil
}

func (s *Service) Create(ctx context.Context, in Input, owner *uint) (*Credential, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Service) == "" || in.APIKey == "" {
		return nil, fberrors.Validation("name, service and api_key are required")
	}

	c := &Credential{
		Name:      strings.TrimSpace(in.Name),
		Service:   strings.TrimSpace(in.Service),
		APIKey:    in.APIKey,
		APISecret: in.APISecret,
		APIURL:    strings.TrimRight(in.APIURL, "/"),
		IsActive:  in.IsActive == nil || *in.IsActive,
		CreatedBy: owner,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fberrors.FromDB("credential", err)
	}

	log.Info().Uint("credential_id", c.ID).Str("service", c.Service).Msg("credential created")
	return c, nil
}

func (s *Service) Update(ctx context.Context, id uint, p Patch) (*Credential, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Service != nil {
		c.Service = strings.TrimSpace(*p.Service)
	}
	if p.APIKey != nil {
		c.APIKey = *p.APIKey
	}
	if p.APISecret != nil {
		c.APISecret = *p.APISecret
	}
	if p.APIURL != nil {
		c.APIURL = strings.TrimRight(*p.APIURL, "/")
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	if c.Name == "" || c.Service == "" || c.APIKey == "" {
		return nil, fberrors.Validation("name, service and api_key cannot be empty")
	}

	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, fberrors.FromDB("credential", err)
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(c).Error; err != nil {
		return fberrors.Internal("delete credential", err)
	}
	return nil
}

// ActiveByService returns the first active credential of a service.
func (s *Service) ActiveByService(ctx context.Context, service string) (*Credential, error) {
	var c Credential
	err := s.db.WithContext(ctx).
		Where("service = ? AND is_active = ?", service, true).
		Order("id ASC").
		First(&c).Error
	if err != nil {
		return nil, fberrors.FromDB("credential", err)
	}
	return &c, nil
}
