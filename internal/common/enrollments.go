package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Enrollment is one user's entry in the enrollment seed file
type Enrollment struct {
	UserId               string   `yaml:"user_id"`
	FrequencyHours       float64  `yaml:"frequency_hours"`
	NotificationsEnabled *bool    `yaml:"notifications_enabled"`
	SilentMode           bool     `yaml:"silent_mode"`
	ConsentScopes        []string `yaml:"consent_scopes"`
}

type EnrollmentsConfig struct {
	Enrollments []Enrollment `yaml:"enrollments"`
}

// Notifications reports the notification flag, which defaults to on
func (e Enrollment) Notifications() bool {
	return e.NotificationsEnabled == nil || *e.NotificationsEnabled
}

func LoadEnrollments(enrollmentsFile string) ([]Enrollment, error) {
	var enrollmentsPath string
	if filepath.IsAbs(enrollmentsFile) {
		enrollmentsPath = enrollmentsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		enrollmentsPath = filepath.Join(wd, enrollmentsFile)
	}

	data, err := os.ReadFile(enrollmentsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", enrollmentsFile, err)
	}
	return ParseEnrollments(data)
}

func ParseEnrollments(data []byte) ([]Enrollment, error) {
	var config EnrollmentsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse enrollments: %w", err)
	}

	seen := make(map[string]bool, len(config.Enrollments))
	for i, enrollment := range config.Enrollments {
		if enrollment.UserId == "" {
			return nil, fmt.Errorf("enrollment at index %d missing user_id", i)
		}
		if seen[enrollment.UserId] {
			return nil, fmt.Errorf("enrollment at index %d duplicates user %s", i, enrollment.UserId)
		}
		seen[enrollment.UserId] = true
		if enrollment.FrequencyHours < 1 {
			return nil, fmt.Errorf("enrollment at index %d: frequency_hours must be at least 1, got %v", i, enrollment.FrequencyHours)
		}
	}

	return config.Enrollments, nil
}
