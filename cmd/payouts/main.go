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

	"dao-governance-go/internal/common"
	"dao-governance-go/internal/config"
	"dao-governance-go/internal/custody"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	dryRunFlag := flag.Bool("dry-run", false, "Report pending payouts without disbursing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	zap.L().Info("Loading custody API credentials")
	creds, err := common.LoadCustodyCredentials()
	if err != nil {
		zap.L().Fatal("Failed to load custody credentials", zap.Error(err))
	}

	custodyService, err := custody.NewService(creds)
	if err != nil {
		zap.L().Fatal("Failed to initialize custody service", zap.Error(err))
	}

	zap.L().Info("Finding default portfolio")
	portfolio, err := custodyService.FindDefaultPortfolio(ctx)
	if err != nil {
		zap.L().Fatal("Failed to find default portfolio", zap.Error(err))
	}
	zap.L().Info("Using portfolio",
		zap.String("name", portfolio.Name),
		zap.String("id", portfolio.Id))

	wallet, err := custodyService.FindTreasuryWallet(ctx, portfolio.Id, cfg.Treasury.PayoutAsset)
	if err != nil {
		zap.L().Fatal("Failed to find treasury wallet",
			zap.String("asset", cfg.Treasury.PayoutAsset),
			zap.Error(err))
	}
	zap.L().Info("Using treasury wallet",
		zap.String("wallet_id", wallet.Id),
		zap.String("symbol", wallet.Symbol))

	disburser := custody.NewDisburser(dbService, custodyService, portfolio.Id, wallet.Id, cfg.Treasury.PayoutAsset)

	disbursed, err := disburser.Run(ctx, *dryRunFlag)
	if err != nil {
		zap.L().Fatal("Disbursement run failed", zap.Error(err))
	}

	mode := "disbursed"
	if *dryRunFlag {
		mode = "would disburse (dry run)"
	}
	common.PrintHeader("PAYOUT DISBURSEMENT")
	fmt.Printf("Asset:   %s\n", cfg.Treasury.PayoutAsset)
	fmt.Printf("Payouts %s: %d\n", mode, disbursed)
	common.PrintRule()
	fmt.Println()

	zap.L().Info("Payout run complete",
		zap.Int("disbursed", disbursed),
		zap.Bool("dry_run", *dryRunFlag))
}
