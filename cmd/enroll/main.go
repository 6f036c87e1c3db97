package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"capture-scheduler-go/internal/common"
	"capture-scheduler-go/internal/config"
	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

// enrollUser creates the user's schedule unless one is already live, then grants the listed consent scopes
func enrollUser(ctx context.Context, services *common.Services, enrollment common.Enrollment) error {
	zap.L().Info("Processing enrollment",
		zap.String("user_id", enrollment.UserId),
		zap.Float64("frequency_hours", enrollment.FrequencyHours))

	schedules, err := services.API.ListSchedules(ctx, enrollment.UserId)
	if err != nil {
		return err
	}
	var existing []models.ScheduleRecord
	for _, schedule := range schedules {
		if !schedule.Archived {
			existing = append(existing, schedule)
		}
	}

	if len(existing) > 0 {
		zap.L().Info("User already has schedules",
			zap.String("user_id", enrollment.UserId),
			zap.Int("count", len(existing)),
			zap.Int64("latest_schedule_id", existing[0].Id))
	} else {
		frequency := time.Duration(enrollment.FrequencyHours * float64(time.Hour))
		schedule, err := services.API.CreateSchedule(ctx, enrollment.UserId, frequency, models.ScheduleOptions{
			NotificationsEnabled: enrollment.Notifications(),
			SilentMode:           enrollment.SilentMode,
		})
		if err != nil {
			return err
		}
		zap.L().Info("Created schedule",
			zap.String("user_id", enrollment.UserId),
			zap.Int64("schedule_id", schedule.Id),
			zap.Float64("frequency_hours", schedule.FrequencyHours))
	}

	if len(enrollment.ConsentScopes) == 0 {
		return nil
	}

	current, err := services.API.CurrentConsent(ctx, enrollment.UserId)
	if err != nil {
		return err
	}
	if current != nil && sameScopes(current.Scopes, enrollment.ConsentScopes) {
		zap.L().Info("Consent already in force",
			zap.String("user_id", enrollment.UserId),
			zap.Int64("version", current.Version))
		return nil
	}

	consent, err := services.API.GrantConsent(ctx, enrollment.UserId, enrollment.ConsentScopes)
	if err != nil {
		return err
	}
	zap.L().Info("Granted consent",
		zap.String("user_id", enrollment.UserId),
		zap.Int64("version", consent.Version),
		zap.Strings("scopes", consent.Scopes))
	return nil
}

func sameScopes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if !set[s] {
			return false
		}
	}
	return true
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fileFlag := flag.String("file", "", "Path to the enrollment seed file (default: ENROLLMENTS_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	enrollmentsFile := cfg.Scheduler.EnrollmentsFile
	if *fileFlag != "" {
		enrollmentsFile = *fileFlag
	}

	zap.L().Info("Loading enrollments", zap.String("file", enrollmentsFile))
	enrollments, err := common.LoadEnrollments(enrollmentsFile)
	if err != nil {
		zap.L().Fatal("Failed to load enrollments", zap.Error(err))
	}
	zap.L().Info("Enrollments loaded", zap.Int("count", len(enrollments)))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var enrolled int
	var failedUsers []string
	var errs []error

	for _, enrollment := range enrollments {
		if err := enrollUser(ctx, services, enrollment); err != nil {
			zap.L().Error("Failed to enroll user",
				zap.String("user_id", enrollment.UserId),
				zap.Error(err))
			failedUsers = append(failedUsers, enrollment.UserId)
			errs = append(errs, err)
			continue
		}
		enrolled++
	}

	if len(failedUsers) > 0 {
		zap.L().Warn("Enrollment completed with some failures",
			zap.Int("enrolled", enrolled),
			zap.Strings("failed_users", failedUsers),
			zap.Error(errors.Join(errs...)))
	} else {
		zap.L().Info("Enrollment completed successfully", zap.Int("enrolled", enrolled))
	}
}
