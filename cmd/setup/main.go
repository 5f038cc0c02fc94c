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
	"fmt"

	"dao-governance-go/internal/common"
	"dao-governance-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Setting up governance database", zap.String("path", cfg.Database.Path))

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	members, err := dbService.GetMembers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read members", zap.Error(err))
	}

	common.PrintHeader("GOVERNANCE DATABASE READY")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Printf("Members:  %d\n", len(members))
	for i, member := range members {
		fmt.Printf("%s%-30s %-10s %-10s balance: %s\n",
			common.BoxPrefix(i == len(members)-1),
			member.DisplayName,
			member.MembershipStatus,
			member.MembershipTier,
			member.TokenBalance.String())
	}
	common.PrintRule()
	fmt.Println()

	zap.L().Info("Setup complete", zap.Int("members", len(members)))
}
