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

package fraud

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Rules holds every scoring knob of the gate. Points are additive and the
// total is capped at 100; the bands translate the score into a risk level.
type Rules struct {
	RapidClaims struct {
		Points     int `yaml:"points"`
		MaxPerDay  int `yaml:"max_per_day"`
		MaxPerWeek int `yaml:"max_per_week"`
	} `yaml:"rapid_claims"`

	SuspiciousAmount struct {
		Points            int     `yaml:"points"`
		AverageMultiplier float64 `yaml:"average_multiplier"`
		MinimumAmount     int64   `yaml:"minimum_amount"`
	} `yaml:"suspicious_amount"`

	RoundNumber struct {
		Points        int   `yaml:"points"`
		Multiple      int64 `yaml:"multiple"`
		MinimumAmount int64 `yaml:"minimum_amount"`
	} `yaml:"round_number"`

	SuspiciousVoting struct {
		Points          int `yaml:"points"`
		MaxVotesPerWeek int `yaml:"max_votes_per_week"`
	} `yaml:"suspicious_voting"`

	BotInterval struct {
		Points            int     `yaml:"points"`
		MinSamples        int     `yaml:"min_samples"`
		MaxAverageSeconds float64 `yaml:"max_average_seconds"`
	} `yaml:"bot_interval"`

	BotSchedule struct {
		Points        int     `yaml:"points"`
		MinSamples    int     `yaml:"min_samples"`
		MaxHourStdDev float64 `yaml:"max_hour_stddev"`
	} `yaml:"bot_schedule"`

	BotBurst struct {
		Points      int           `yaml:"points"`
		MinInterval time.Duration `yaml:"min_interval"`
	} `yaml:"bot_burst"`

	VPNUsage struct {
		Points       int           `yaml:"points"`
		MaxLocations int           `yaml:"max_locations"`
		Window       time.Duration `yaml:"window"`
	} `yaml:"vpn_usage"`

	Bands struct {
		Medium   int `yaml:"medium"`
		High     int `yaml:"high"`
		Critical int `yaml:"critical"`
	} `yaml:"bands"`
}

// DefaultRules returns the scoring defaults. A YAML rules file overrides
// individual fields; anything it omits keeps these values.
func DefaultRules() Rules {
	var r Rules

	r.RapidClaims.Points = 25
	r.RapidClaims.MaxPerDay = 3
	r.RapidClaims.MaxPerWeek = 10

	r.SuspiciousAmount.Points = 15
	r.SuspiciousAmount.AverageMultiplier = 3.0
	r.SuspiciousAmount.MinimumAmount = 1000

	r.RoundNumber.Points = 10
	r.RoundNumber.Multiple = 100
	r.RoundNumber.MinimumAmount = 500

	r.SuspiciousVoting.Points = 20
	r.SuspiciousVoting.MaxVotesPerWeek = 50

	r.BotInterval.Points = 30
	r.BotInterval.MinSamples = 10
	r.BotInterval.MaxAverageSeconds = 60

	r.BotSchedule.Points = 15
	r.BotSchedule.MinSamples = 10
	r.BotSchedule.MaxHourStdDev = 1.0

	r.BotBurst.Points = 30
	r.BotBurst.MinInterval = time.Second

	r.VPNUsage.Points = 10
	r.VPNUsage.MaxLocations = 5
	r.VPNUsage.Window = 24 * time.Hour

	r.Bands.Medium = 30
	r.Bands.High = 60
	r.Bands.Critical = 80

	return r
}

// LoadRules reads a YAML rules file over the defaults. An empty path
// returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("unable to read fraud rules file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("unable to parse fraud rules file %s: %w", path, err)
	}

	if err := rules.validate(); err != nil {
		return rules, fmt.Errorf("invalid fraud rules in %s: %w", path, err)
	}
	return rules, nil
}

func (r Rules) validate() error {
	if r.Bands.Medium <= 0 || r.Bands.High <= r.Bands.Medium || r.Bands.Critical <= r.Bands.High {
		return fmt.Errorf("bands must be strictly increasing, got %d/%d/%d",
			r.Bands.Medium, r.Bands.High, r.Bands.Critical)
	}
	if r.Bands.Critical > 100 {
		return fmt.Errorf("critical band %d exceeds the score cap of 100", r.Bands.Critical)
	}
	return nil
}
