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
	"regexp"
	"strings"

	"dao-governance-go/internal/common"
	"dao-governance-go/internal/config"
	"dao-governance-go/internal/database"
	"dao-governance-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	return nil
}

func parseTier(raw string) (models.MembershipTier, error) {
	switch models.MembershipTier(strings.ToUpper(raw)) {
	case models.TierFounder:
		return models.TierFounder, nil
	case models.TierEarlyAdopter:
		return models.TierEarlyAdopter, nil
	case models.TierPremium:
		return models.TierPremium, nil
	case models.TierStandard:
		return models.TierStandard, nil
	default:
		return "", fmt.Errorf("unknown membership tier: %s", raw)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Member's display name (required)")
	emailFlag := flag.String("email", "", "Member's email address (required)")
	tierFlag := flag.String("tier", "STANDARD", "Membership tier: FOUNDER, EARLY_ADOPTER, PREMIUM, or STANDARD")
	balanceFlag := flag.String("balance", "0", "Initial governance token balance")
	walletFlag := flag.String("wallet", "", "On-chain wallet address for payout disbursement (optional)")
	flag.Parse()

	if *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --name and --email")
	}
	if err := validateName(*nameFlag); err != nil {
		zap.L().Fatal("Invalid name", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	tier, err := parseTier(*tierFlag)
	if err != nil {
		zap.L().Fatal("Invalid tier", zap.Error(err))
	}

	balance, err := decimal.NewFromString(*balanceFlag)
	if err != nil || balance.IsNegative() {
		zap.L().Fatal("Invalid balance", zap.String("balance", *balanceFlag))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	member, err := dbService.CreateMember(ctx, database.CreateMemberParams{
		DisplayName:      *nameFlag,
		Email:            *emailFlag,
		MembershipStatus: models.MembershipActive,
		MembershipTier:   tier,
		TokenBalance:     balance,
		WalletAddress:    *walletFlag,
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			zap.L().Fatal("Member already exists with this email", zap.String("email", *emailFlag))
		}
		zap.L().Fatal("Failed to create member", zap.Error(err))
	}

	fmt.Println()
	common.PrintHeader("MEMBER CREATED")
	fmt.Printf("ID:      %s\n", member.Id)
	fmt.Printf("Name:    %s\n", member.DisplayName)
	fmt.Printf("Email:   %s\n", member.Email)
	fmt.Printf("Tier:    %s\n", member.MembershipTier)
	fmt.Printf("Balance: %s\n", member.TokenBalance.String())
	if member.WalletAddress != "" {
		fmt.Printf("Wallet:  %s\n", member.WalletAddress)
	}
	common.PrintRule()
	fmt.Println()

	zap.L().Info("Member created successfully", zap.String("id", member.Id))
}
