package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Activity queries below feed the fraud gate. They are read-only and run
// before the screened action writes anything.

func (s *Service) CountClaimsSince(ctx context.Context, ownerId string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, queryCountClaimsSince, ownerId, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unable to count recent claims: %w", err)
	}
	return count, nil
}

// AverageClaimAmountSince returns the owner's mean requested amount over
// the window, or zero when no claims exist. Heuristic input only, so the
// REAL cast's precision is acceptable.
func (s *Service) AverageClaimAmountSince(ctx context.Context, ownerId string, since time.Time) (decimal.Decimal, error) {
	var avg float64
	err := s.db.QueryRowContext(ctx, queryAvgClaimAmountSince, ownerId, since.UTC()).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to average recent claim amounts: %w", err)
	}
	return decimal.NewFromFloat(avg), nil
}

// CountVotesSince counts claim and proposal votes together.
func (s *Service) CountVotesSince(ctx context.Context, voterId string, since time.Time) (int, error) {
	sinceUTC := since.UTC()
	var count int
	err := s.db.QueryRowContext(ctx, queryCountVotesSince, voterId, sinceUTC, voterId, sinceUTC).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unable to count recent votes: %w", err)
	}
	return count, nil
}

// RecentVoteTimes returns the voter's newest vote timestamps, newest first.
func (s *Service) RecentVoteTimes(ctx context.Context, voterId string, limit int) ([]time.Time, error) {
	return s.queryTimes(ctx, queryRecentVoteTimes, voterId, limit)
}

// RecentClaimSubmissionTimes returns the owner's newest claim creation
// timestamps, newest first.
func (s *Service) RecentClaimSubmissionTimes(ctx context.Context, ownerId string, limit int) ([]time.Time, error) {
	return s.queryTimes(ctx, queryRecentClaimSubmissionTimes, ownerId, limit)
}

func (s *Service) CountDistinctLoginLocations(ctx context.Context, memberId string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, queryCountDistinctLoginLocations, memberId, since.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unable to count login locations: %w", err)
	}
	return count, nil
}

func (s *Service) queryTimes(ctx context.Context, query string, id string, limit int) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, query, id, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to query timestamps: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("unable to scan timestamp row: %w", err)
		}
		times = append(times, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timestamp rows: %w", err)
	}
	return times, nil
}
