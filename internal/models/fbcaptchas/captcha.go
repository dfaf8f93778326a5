package fbcaptchas

import (
	"fmt"
	"strings"

	"funnelboard/internal/models/fbredis"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Captchas struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// Challenge is what the registration form shows. Answer is only filled
// outside production.
type Challenge struct {
	CaptchaID string `json:"captcha_id"`
	Image     string `json:"image"`
	Answer    string `json:"answer,omitempty"`
}

// New keeps answers in redis when a client is given, in memory otherwise.
func New(client *redis.Client) *Captchas {
	var store base64Captcha.Store
	if client != nil {
		store = fbredis.NewCaptchaStore(client)
	} else {
		store = base64Captcha.DefaultMemStore
	}

	driver := base64Captcha.NewDriverMath(
		80,
		240,
		6,
		base64Captcha.OptionShowHollowLine,
		nil,
		nil,
		nil,
	)

	return &Captchas{
		store:  store,
		driver: driver,
	}
}

func (cap *Captchas) Generate(production bool) (*Challenge, error) {
	captcha := base64Captcha.NewCaptcha(cap.driver, cap.store)

	id, b64s, answer, err := captcha.Generate()
	if err != nil {
		return nil, fmt.Errorf("captcha generation: %w", err)
	}

	ch := &Challenge{CaptchaID: id, Image: b64s}
	if !production {
		log.Debug().Str("captcha_id", id).Str("answer", answer).Msg("captcha generated")
		ch.Answer = answer
	}
	return ch, nil
}

// Verify consumes the captcha whatever the outcome.
func (cap *Captchas) Verify(captchaID string, captchaAnswer string) error {
	captchaID = strings.TrimSpace(captchaID)
	captchaAnswer = strings.TrimSpace(captchaAnswer)

	if captchaID == "" || captchaAnswer == "" {
		return fmt.Errorf("captcha missing")
	}
	if !cap.store.Verify(captchaID, captchaAnswer, true) {
		return fmt.Errorf("captcha incorrect")
	}
	return nil
}
