package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"dao-governance-go/internal/api"
	"dao-governance-go/internal/audit"
	"dao-governance-go/internal/claims"
	"dao-governance-go/internal/database"
	"dao-governance-go/internal/formance"
	"dao-governance-go/internal/fraud"
	"dao-governance-go/internal/governance"
	"dao-governance-go/internal/models"
	"dao-governance-go/internal/proposals"
	"dao-governance-go/internal/store"
	"dao-governance-go/internal/voting"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via other means (shell
	// export, docker, etc.), so a missing .env file is fine.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Governance *api.GovernanceService
	Security   *governance.SecurityContext
	Ledger     store.TreasuryLedger

	redisLimiter *fraud.RedisRateLimiter
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rules := fraud.DefaultRules()
	if cfg.Fraud.RulesFile != "" {
		rules, err = fraud.LoadRules(cfg.Fraud.RulesFile)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("unable to load fraud rules: %w", err)
		}
		zap.L().Info("Fraud rules loaded", zap.String("file", cfg.Fraud.RulesFile))
	}

	var limiter fraud.RateLimiter
	var redisLimiter *fraud.RedisRateLimiter
	switch cfg.Fraud.RateLimiterBackend {
	case "redis":
		redisLimiter, err = fraud.NewRedisRateLimiter(cfg.Fraud, rules.BotBurst.MinInterval)
		if err != nil {
			dbService.Close()
			return nil, fmt.Errorf("unable to connect rate limiter: %w", err)
		}
		limiter = redisLimiter
	default:
		limiter = fraud.NewMemoryRateLimiter(rules.BotBurst.MinInterval)
	}

	trail := audit.NewTrail(dbService)
	security := &governance.SecurityContext{
		Gate:   fraud.NewGate(dbService, limiter, rules),
		Audit:  trail,
		Alerts: audit.NewLogAlertSink(),
		Logins: dbService,
	}

	ledger, err := selectTreasuryLedger(ctx, cfg, dbService)
	if err != nil {
		if redisLimiter != nil {
			redisLimiter.Close()
		}
		dbService.Close()
		return nil, err
	}

	calc := voting.NewCalculator(dbService)
	registry := voting.NewRegistry(dbService, calc, trail)
	claimsService := claims.NewService(dbService, ledger, security)
	proposalsService := proposals.NewService(dbService, calc, security)

	return &Services{
		DbService:    dbService,
		Governance:   api.NewGovernanceService(dbService, claimsService, proposalsService, calc, registry),
		Security:     security,
		Ledger:       ledger,
		redisLimiter: redisLimiter,
	}, nil
}

func selectTreasuryLedger(ctx context.Context, cfg *models.Config, dbService *database.Service) (store.TreasuryLedger, error) {
	switch cfg.Treasury.Backend {
	case "formance":
		zap.L().Info("Using Formance treasury backend")
		return formance.NewService(ctx, cfg.Formance, cfg.Treasury.PayoutAsset)
	case "", "sqlite":
		zap.L().Info("Using SQLite treasury backend")
		return dbService, nil
	default:
		return nil, fmt.Errorf("unknown treasury backend %q", cfg.Treasury.Backend)
	}
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like the voting power report.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.redisLimiter != nil {
		cs.redisLimiter.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

// LoadCustodyCredentials reads the Prime API credentials that the payout
// disbursement tool needs from the environment.
func LoadCustodyCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
