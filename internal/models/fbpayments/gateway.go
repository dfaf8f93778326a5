package fbpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"funnelboard/internal/models/fbconfig"
	"funnelboard/internal/models/fbcredentials"

	"github.com/google/uuid"
)

type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

// ChargeRequest asks the gateway for a PIX charge. Amount is in cents.
type ChargeRequest struct {
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Customer    Customer `json:"customer"`
	Description string   `json:"description"`
	CallbackURL string   `json:"callback_url"`
	ReferenceID string   `json:"reference_id"`
}

// Charge is the gateway answer. Raw keeps the whole response body.
type Charge struct {
	ID     string
	Status Status
	Raw    map[string]any
}

type Gateway interface {
	CreateCharge(ctx context.Context, cred *fbcredentials.Credential, req ChargeRequest) (*Charge, error)
}

// NewGateway returns the gateway selected by configuration.
func NewGateway(cfg fbconfig.PaymentsConfig) Gateway {
	if cfg.Gateway == "skalepay" {
		return NewSkalePay(&http.Client{Timeout: cfg.Timeout})
	}
	return Simulated{}
}

// SkalePay talks JSON over HTTP to the credential's api_url.
type SkalePay struct {
	client *http.Client
}

func NewSkalePay(client *http.Client) *SkalePay {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SkalePay{client: client}
}

func (g *SkalePay) CreateCharge(ctx context.Context, cred *fbcredentials.Credential, req ChargeRequest) (*Charge, error) {
	if cred.APIURL == "" {
		return nil, fmt.Errorf("credential %d has no api_url", cred.ID)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.APIURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Basic "+cred.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway answered %d", resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("gateway response decoding: %w", err)
	}
	id, _ := raw["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("gateway response without id")
	}
	status, _ := raw["status"].(string)
	return &Charge{ID: id, Status: normalizeStatus(status), Raw: raw}, nil
}

func normalizeStatus(s string) Status {
	if st := Status(s); st.Valid() {
		return st
	}
	return StatusPending
}

// Simulated answers every charge locally with a pending PIX code.
type Simulated struct{}

func (Simulated) CreateCharge(_ context.Context, _ *fbcredentials.Credential, req ChargeRequest) (*Charge, error) {
	id := "pix_" + uuid.NewString()
	raw := map[string]any{
		"id":            id,
		"status":        string(StatusPending),
		"qr_code_image": "https://via.placeholder.com/150?text=QR+Code",
		"qr_code_text":  "00020126580014BR.GOV.BCB.PIX0136" + id,
		"amount":        float64(req.Amount) / 100,
		"reference_id":  req.ReferenceID,
		"simulated":     true,
	}
	return &Charge{ID: id, Status: StatusPending, Raw: raw}, nil
}
