package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"capture-scheduler-go/internal/models"
)

// Verdict is the outcome of validating a captured photo
type Verdict struct {
	IsValid bool   `json:"is_valid"`
	Notes   string `json:"notes,omitempty"`
}

// Validator decides whether photo bytes are acceptable. A returned error means the
// check itself could not run, not that the photo is invalid.
type Validator interface {
	Validate(ctx context.Context, data []byte) (Verdict, error)
}

// BasicValidator accepts any decodable JPEG or PNG of at least the minimum size
type BasicValidator struct {
	MinWidth  int
	MinHeight int
}

func NewBasicValidator(cfg models.CaptureConfig) *BasicValidator {
	return &BasicValidator{MinWidth: cfg.MinImageWidth, MinHeight: cfg.MinImageHeight}
}

func (v *BasicValidator) Validate(ctx context.Context, data []byte) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Verdict{IsValid: false, Notes: "undecodable image"}, nil
	}
	if cfg.Width < v.MinWidth || cfg.Height < v.MinHeight {
		return Verdict{
			IsValid: false,
			Notes:   fmt.Sprintf("%s %dx%d below minimum %dx%d", format, cfg.Width, cfg.Height, v.MinWidth, v.MinHeight),
		}, nil
	}
	return Verdict{IsValid: true, Notes: fmt.Sprintf("%s %dx%d", format, cfg.Width, cfg.Height)}, nil
}

// HTTPValidator posts photo bytes to a verdict service that answers with a JSON Verdict
type HTTPValidator struct {
	client *http.Client
	url    string
}

func NewHTTPValidator(cfg models.CaptureConfig) (*HTTPValidator, error) {
	if cfg.VerdictURL == "" {
		return nil, fmt.Errorf("verdict url cannot be empty")
	}
	client, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &HTTPValidator{client: client, url: cfg.VerdictURL}, nil
}

func (v *HTTPValidator) Validate(ctx context.Context, data []byte) (Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(data))
	if err != nil {
		return Verdict{}, fmt.Errorf("build verdict request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(data))

	resp, err := v.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("verdict service responded %d", resp.StatusCode)
	}
	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	return verdict, nil
}

// ValidatorFunc adapts a function to Validator
type ValidatorFunc func(ctx context.Context, data []byte) (Verdict, error)

func (f ValidatorFunc) Validate(ctx context.Context, data []byte) (Verdict, error) {
	return f(ctx, data)
}
