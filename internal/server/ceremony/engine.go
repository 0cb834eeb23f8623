// Package ceremony orchestrates the two-phase WebAuthn exchanges: enrollment
// (registration) and login (authentication). Protocol-level verification is
// delegated to go-webauthn; this package owns the durable challenge ledger,
// its atomic single-use consumption, decoy flows for unknown usernames,
// credential and counter persistence, and the error taxonomy callers see.
package ceremony

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/janus-sso/janus/internal/common"
	"github.com/janus-sso/janus/internal/dbx"
	"github.com/janus-sso/janus/internal/logging"
	"github.com/janus-sso/janus/internal/server/repositories/repomanager"
)

// Config carries the relying-party identity and ceremony policy.
type Config struct {
	RPID          string
	RPDisplayName string
	RPOrigins     []string
	ChallengeTTL  time.Duration
}

const defaultChallengeTTL = 5 * time.Minute

type Engine struct {
	db     dbx.DBTX
	repos  repomanager.RepositoryManager
	wa     *webauthn.WebAuthn
	logger logging.Logger
	cfg    Config

	// decoySeed makes fake credential descriptors for unknown usernames
	// deterministic within one process lifetime, so repeated StartLogin calls
	// for the same unknown name return identical options.
	decoySeed []byte
}

func NewEngine(db dbx.DBTX, repos repomanager.RepositoryManager, logger logging.Logger, cfg Config) (*Engine, error) {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = defaultChallengeTTL
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    cfg.ChallengeTTL,
				TimeoutUVD: cfg.ChallengeTTL,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    cfg.ChallengeTTL,
				TimeoutUVD: cfg.ChallengeTTL,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init webauthn: %w", err)
	}

	seed, err := common.GenerateRandByteArray(32)
	if err != nil {
		return nil, err
	}

	return &Engine{
		db:        db,
		repos:     repos,
		wa:        wa,
		logger:    logger.With("module", "ceremony"),
		cfg:       cfg,
		decoySeed: seed,
	}, nil
}

// withTx runs fn inside a database transaction when the engine is backed by
// one. Repository managers without transactional storage get fn run directly
// on the shared handle.
func (e *Engine) withTx(ctx context.Context, fn func(ctx context.Context, db dbx.DBTX) error) error {
	if db, ok := e.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, fn)
	}
	return fn(ctx, e.db)
}

// SweepExpiredChallenges reclaims ledger rows that are past expiry. Expired
// entries are already unusable; this is storage hygiene only.
func (e *Engine) SweepExpiredChallenges(ctx context.Context) (int64, error) {
	removed, err := e.repos.Challenges(e.db).SweepExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.logger.Debug(ctx, "swept expired challenges", "removed", removed)
	}
	return removed, nil
}
