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

// Package audit holds the fire-and-forget sinks for the audit trail and
// operational alerts. A failed append or alert is logged and dropped;
// it never fails or retries the operation that produced it.
package audit

import (
	"context"

	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"

	"go.uber.org/zap"
)

// EntryStore is the persistence the trail writes through.
type EntryStore interface {
	AppendAuditEntry(ctx context.Context, entry models.AuditEntry) error
}

// Compile-time checks against the governance interfaces.
var (
	_ governance.AuditTrail = (*Trail)(nil)
	_ governance.AlertSink  = (*LogAlertSink)(nil)
)

// Trail appends audit entries to the store.
type Trail struct {
	store EntryStore
}

func NewTrail(store EntryStore) *Trail {
	return &Trail{store: store}
}

func (t *Trail) Append(ctx context.Context, entry models.AuditEntry) {
	if err := t.store.AppendAuditEntry(ctx, entry); err != nil {
		zap.L().Error("Failed to append audit entry",
			zap.String("actor_id", entry.ActorId),
			zap.String("action", entry.Action),
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityId),
			zap.Error(err))
	}
}

// LogAlertSink delivers alerts to the structured log. Wiring swaps in a
// pager or webhook sink in deployments that have one; the interface is
// the same either way.
type LogAlertSink struct{}

func NewLogAlertSink() *LogAlertSink {
	return &LogAlertSink{}
}

func (s *LogAlertSink) Raise(_ context.Context, category, severity string, details map[string]string) {
	fields := make([]zap.Field, 0, len(details)+2)
	fields = append(fields,
		zap.String("category", category),
		zap.String("severity", severity))
	for key, value := range details {
		fields = append(fields, zap.String(key, value))
	}

	if severity == "critical" {
		zap.L().Error("ALERT", fields...)
		return
	}
	zap.L().Warn("ALERT", fields...)
}
