package capture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"capture-scheduler-go/internal/models"
)

func TestSyntheticDevice_ProducesValidPhoto(t *testing.T) {
	data, err := NewSyntheticDevice().Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	v := &BasicValidator{MinWidth: 640, MinHeight: 480}
	verdict, err := v.Validate(context.Background(), data)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !verdict.IsValid {
		t.Errorf("Expected synthetic photo to be valid, notes=%q", verdict.Notes)
	}
}

func TestBasicValidator(t *testing.T) {
	small := &SyntheticDevice{Width: 32, Height: 24}
	smallData, err := small.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	tests := []struct {
		name      string
		data      []byte
		wantValid bool
	}{
		{"garbage bytes", []byte("not an image"), false},
		{"too small", smallData, false},
	}
	v := &BasicValidator{MinWidth: 640, MinHeight: 480}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := v.Validate(context.Background(), tt.data)
			if err != nil {
				t.Fatalf("Validate should not error on bad input: %v", err)
			}
			if verdict.IsValid != tt.wantValid {
				t.Errorf("IsValid = %v, want %v (notes %q)", verdict.IsValid, tt.wantValid, verdict.Notes)
			}
		})
	}
}

func TestHTTPDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Capture-Session") != "sess-1" {
			http.Error(w, "missing session", http.StatusBadRequest)
			return
		}
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	device, err := NewHTTPDevice(models.CaptureConfig{DeviceURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPDevice failed: %v", err)
	}

	ctx := models.WithCaptureContext(context.Background(), &models.CaptureContext{SessionId: "sess-1"})
	data, err := device.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("Unexpected body %q", data)
	}

	if _, err := device.Capture(context.Background()); err == nil {
		t.Error("Expected error on non-200 response")
	}
}

func TestHTTPValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == "good" {
			w.Write([]byte(`{"is_valid": true, "notes": "ok"}`))
			return
		}
		w.Write([]byte(`{"is_valid": false, "notes": "blurry"}`))
	}))
	defer srv.Close()

	v, err := NewHTTPValidator(models.CaptureConfig{VerdictURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPValidator failed: %v", err)
	}

	verdict, err := v.Validate(context.Background(), []byte("good"))
	if err != nil || !verdict.IsValid {
		t.Errorf("Expected valid verdict, got %+v, %v", verdict, err)
	}
	verdict, err = v.Validate(context.Background(), []byte("bad"))
	if err != nil || verdict.IsValid || verdict.Notes != "blurry" {
		t.Errorf("Expected invalid verdict, got %+v, %v", verdict, err)
	}
}
