/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"capture-scheduler-go/internal/common"
	"capture-scheduler-go/internal/config"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/store"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers       int
	usersWithBalance int
	totalCents       int64
	reconcileFailed  int
}

func printBalance(balance models.EarningBalance, isLast bool) {
	updated := "never"
	if !balance.UpdatedAt.IsZero() {
		updated = balance.UpdatedAt.Format("2006-01-02 15:04:05")
	}

	fmt.Printf("%s %-24s: %12s (v%d, last_event: %s, updated: %s)\n",
		common.BoxPrefix(isLast),
		balance.UserId,
		"$"+models.CentsToDollars(balance.BalanceCents).StringFixed(2),
		balance.Version,
		common.Truncate(balance.LastEventId, 8),
		updated)
}

func printHistory(ctx context.Context, ledger store.LedgerStore, userId string, limit int) {
	events, err := ledger.GetEarningHistory(ctx, userId, limit, 0)
	if err != nil {
		zap.L().Error("Failed to get earning history", zap.String("user_id", userId), zap.Error(err))
		return
	}
	for i, event := range events {
		photo := "adjustment"
		if event.PhotoId != nil {
			photo = common.Truncate(*event.PhotoId, 8)
		}
		fmt.Printf("   %s %s %+d cents (%s, photo: %s)\n",
			common.BoxPrefix(i == len(events)-1),
			event.CreatedAt.Format("2006-01-02 15:04:05"),
			event.AmountCents,
			event.Reason,
			photo)
	}
}

func processBalances(ctx context.Context, ledger store.LedgerStore, balances []models.EarningBalance, reconcile bool, historyLimit int) balanceStats {
	stats := balanceStats{}

	for i, balance := range balances {
		stats.totalUsers++
		if balance.BalanceCents != 0 {
			stats.usersWithBalance++
			stats.totalCents += balance.BalanceCents
		}

		printBalance(balance, i == len(balances)-1)
		if historyLimit > 0 {
			printHistory(ctx, ledger, balance.UserId, historyLimit)
		}

		if reconcile {
			if err := ledger.ReconcileBalance(ctx, balance.UserId); err != nil {
				stats.reconcileFailed++
				fmt.Printf("   !! reconcile failed: %v\n", err)
			}
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify each balance equals the sum of its earning events")
	historyFlag := flag.Int("history", 0, "Show the N most recent earning events per user")
	flag.Parse()

	zap.L().Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no capture pipeline, just the metadata store and the ledger
	zap.L().Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	ledger, err := common.InitializeLedger(ctx, cfg, dbService)
	if err != nil {
		zap.L().Fatal("Failed to initialize ledger", zap.Error(err))
	}
	if ledger != store.LedgerStore(dbService) {
		defer ledger.Close()
	}

	balances, err := common.SelectBalances(ctx, ledger, *userFlag)
	if err != nil {
		zap.L().Fatal("Failed to select balances", zap.Error(err))
	}

	common.PrintHeader("EARNINGS BALANCE REPORT", common.WideWidth)
	stats := processBalances(ctx, ledger, balances, *reconcileFlag, *historyFlag)

	summary := fmt.Sprintf("SUMMARY: %d users with earnings, $%s total across %d users queried",
		stats.usersWithBalance, models.CentsToDollars(stats.totalCents).StringFixed(2), stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d reconcile failures", stats.reconcileFailed)
	}
	common.PrintFooter(summary, common.WideWidth)

	zap.L().Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balance", stats.usersWithBalance),
		zap.Int64("total_cents", stats.totalCents),
		zap.Int("reconcile_failures", stats.reconcileFailed))

	if stats.reconcileFailed > 0 {
		os.Exit(1)
	}
}
