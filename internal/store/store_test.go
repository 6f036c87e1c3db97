package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	sentinels := []error{
		ErrInvalidFrequency,
		ErrScheduleNotFound,
		ErrScheduleArchived,
		ErrSessionNotFound,
		ErrSessionTerminal,
		ErrSessionInProgress,
		ErrConsentNotFound,
		ErrDuplicateEarning,
		ErrConcurrentModification,
	}
	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", sentinel))
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("errors.Is lost %v through wrapping", sentinel)
		}
		for _, other := range sentinels {
			if other != sentinel && errors.Is(wrapped, other) {
				t.Errorf("%v unexpectedly matches %v", sentinel, other)
			}
		}
	}
}
