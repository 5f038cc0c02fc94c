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
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/voting"

	"go.uber.org/zap"
)

type powerStats struct {
	totalMembers    int
	eligibleMembers int
}

func printMemberPower(member models.Member, power models.VotingPower, isLast bool) {
	eligibility := "eligible"
	if !power.Eligible {
		eligibility = "NOT ELIGIBLE"
	}

	fmt.Printf("%s %-25s %-14s own: %12s  delegated: %12s  total: %12s  (%s)\n",
		common.BoxPrefix(isLast),
		member.DisplayName,
		member.MembershipTier,
		power.OwnPower.String(),
		power.DelegatedPower.String(),
		power.TotalPower.String(),
		eligibility)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	memberFlag := flag.String("member", "", "Report a single member by id (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	calc := voting.NewCalculator(dbService)

	var members []models.Member
	if *memberFlag != "" {
		member, err := dbService.GetMemberById(ctx, *memberFlag)
		if err != nil {
			logger.Fatal("Failed to load member", zap.String("member_id", *memberFlag), zap.Error(err))
		}
		members = []models.Member{*member}
	} else {
		members, err = dbService.GetMembers(ctx)
		if err != nil {
			logger.Fatal("Failed to load members", zap.Error(err))
		}
	}

	common.PrintHeader("VOTING POWER REPORT")

	stats := powerStats{}
	for i, member := range members {
		power, err := calc.ComputePower(ctx, member.Id)
		if err != nil {
			logger.Error("Failed to compute power",
				zap.String("member_id", member.Id),
				zap.Error(err))
			continue
		}

		stats.totalMembers++
		if power.Eligible {
			stats.eligibleMembers++
		}
		printMemberPower(member, *power, i == len(members)-1)
	}

	networkPower, err := calc.TotalNetworkPower(ctx)
	if err != nil {
		logger.Fatal("Failed to compute network power", zap.Error(err))
	}

	summary := fmt.Sprintf("SUMMARY: %d members (%d eligible), total network power %s",
		stats.totalMembers, stats.eligibleMembers, networkPower.String())
	common.PrintFooter(summary)

	logger.Info("Power report completed",
		zap.Int("members", stats.totalMembers),
		zap.Int("eligible", stats.eligibleMembers),
		zap.String("network_power", networkPower.String()))
}
