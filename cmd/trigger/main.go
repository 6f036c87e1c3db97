package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"capture-scheduler-go/internal/common"
	"capture-scheduler-go/internal/config"
	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"

	"go.uber.org/zap"
)

// waitForSession polls the session until it reaches a terminal state
func waitForSession(ctx context.Context, services *common.Services, userId, sessionId string, interval time.Duration) (*models.SessionRecord, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		session, err := services.API.GetSession(ctx, userId, sessionId)
		if err != nil {
			return nil, err
		}
		if session.Status.IsTerminal() {
			return session, nil
		}
		zap.L().Debug("Session in progress",
			zap.String("session_id", sessionId),
			zap.String("status", string(session.Status)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printSession(session *models.SessionRecord) {
	common.PrintHeader("CAPTURE SESSION", common.DefaultWidth)
	fmt.Printf("%s %-12s: %s\n", common.BoxPrefix(false), "Session", session.Id)
	fmt.Printf("%s %-12s: %s\n", common.BoxPrefix(false), "User", session.UserId)
	fmt.Printf("%s %-12s: %s\n", common.BoxPrefix(false), "Status", session.Status)
	if session.FailureReason != "" {
		fmt.Printf("%s %-12s: %s\n", common.BoxPrefix(false), "Reason", session.FailureReason)
	}
	fmt.Printf("%s %-12s: %s\n", common.BoxPrefix(false), "Photo", common.Truncate(session.PhotoId, 12))
	fmt.Printf("%s %-12s: $%s\n", common.BoxPrefix(true), "Earnings", session.Earnings.StringFixed(2))
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	userFlag := flag.String("user", "", "User to capture for (required)")
	pollFlag := flag.Duration("poll", 500*time.Millisecond, "Session polling interval")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	if *userFlag == "" {
		zap.L().Fatal("Missing required -user flag")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.SessionDeadline+cfg.Capture.Timeout)
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	session, err := services.API.TriggerCapture(ctx, *userFlag)
	if err != nil {
		if errors.Is(err, lock.ErrLockContention) {
			zap.L().Warn("A capture is already in progress for this user", zap.String("user_id", *userFlag))
			return
		}
		zap.L().Fatal("Failed to trigger capture", zap.Error(err))
	}
	zap.L().Info("Capture triggered",
		zap.String("user_id", *userFlag),
		zap.String("session_id", session.Id))

	final, err := waitForSession(ctx, services, *userFlag, session.Id, *pollFlag)
	if err != nil {
		zap.L().Fatal("Failed waiting for session", zap.String("session_id", session.Id), zap.Error(err))
	}
	services.Scheduler.WaitIdle()

	printSession(final)
}
