package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// maxPhotoBytes bounds a device response
const maxPhotoBytes = 32 << 20

// Device produces one photo per call. Implementations must honor ctx cancellation.
type Device interface {
	Capture(ctx context.Context) ([]byte, error)
}

// ErrEmptyCapture is returned when a device answers without image bytes
var ErrEmptyCapture = errors.New("device returned no image data")

// newHTTPClient returns a client whose transport negotiates HTTP/2 over TLS
func newHTTPClient(timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configure http2 transport: %w", err)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// HTTPDevice fetches a photo from a camera endpoint with GET
type HTTPDevice struct {
	client *http.Client
	url    string
}

func NewHTTPDevice(cfg models.CaptureConfig) (*HTTPDevice, error) {
	if cfg.DeviceURL == "" {
		return nil, fmt.Errorf("capture device url cannot be empty")
	}
	client, err := newHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &HTTPDevice{client: client, url: cfg.DeviceURL}, nil
}

func (d *HTTPDevice) Capture(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build capture request: %w", err)
	}
	if cc := models.GetCaptureContext(ctx); cc != nil {
		req.Header.Set("X-Capture-Session", cc.SessionId)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device responded %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("read device response: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyCapture
	}
	return data, nil
}

// SyntheticDevice renders a flat test photo, for development without a camera
type SyntheticDevice struct {
	Width  int
	Height int
}

func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{Width: 800, Height: 600}
}

func (d *SyntheticDevice) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, d.Width, d.Height))
	shade := uint8(time.Now().UnixNano() % 64)
	fill := color.RGBA{R: 240, G: 128 + shade, B: 128, A: 255}
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode synthetic photo: %w", err)
	}

	zap.L().Debug("Generated synthetic photo",
		zap.Int("width", d.Width),
		zap.Int("height", d.Height),
		zap.Int("size_bytes", buf.Len()))
	return buf.Bytes(), nil
}

// DeviceFunc adapts a function to Device
type DeviceFunc func(ctx context.Context) ([]byte, error)

func (f DeviceFunc) Capture(ctx context.Context) ([]byte, error) {
	return f(ctx)
}
