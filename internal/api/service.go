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

package api

import (
	"context"
	"fmt"

	"dao-governance-go/internal/claims"
	"dao-governance-go/internal/database"
	"dao-governance-go/internal/proposals"
	"dao-governance-go/internal/voting"
)

// GovernanceService bundles the decision-engine services behind one
// handle for callers that embed the engine.
type GovernanceService struct {
	db          *database.Service
	Claims      *claims.Service
	Proposals   *proposals.Service
	Power       *voting.Calculator
	Delegations *voting.Registry
}

func NewGovernanceService(db *database.Service, claimsSvc *claims.Service,
	proposalsSvc *proposals.Service, power *voting.Calculator, delegations *voting.Registry) *GovernanceService {
	return &GovernanceService{
		db:          db,
		Claims:      claimsSvc,
		Proposals:   proposalsSvc,
		Power:       power,
		Delegations: delegations,
	}
}

func (s *GovernanceService) HealthCheck(ctx context.Context) error {
	_, err := s.db.CountActiveMembers(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
