// Package thresholds resolves the versioned threshold configuration the
// verdict engine applies. Resolution fails closed: when no configuration can
// be trusted, the caller must refuse to compute a verdict rather than guess.
package thresholds

import (
	"context"
	"errors"
	"log"
	"time"

	"strategy-verdict-lab/internal/domain"
	"strategy-verdict-lab/internal/storage"
)

// DefaultResolveTimeout bounds the store lookup so a slow database cannot
// stall verdict requests.
const DefaultResolveTimeout = 2 * time.Second

// Resolution is the outcome of one threshold lookup.
type Resolution struct {
	Config   domain.ThresholdsConfig
	Source   domain.ConfigSource
	Warnings []string
}

// Resolver loads thresholds from the store with a bounded timeout and a
// compiled-in fallback.
type Resolver struct {
	store   storage.ThresholdsStore
	timeout time.Duration
	logger  *log.Logger
}

// NewResolver creates a resolver. store may be nil, in which case every
// resolution uses the compiled-in defaults. logger may be nil to disable
// logging.
func NewResolver(store storage.ThresholdsStore, timeout time.Duration, logger *log.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{store: store, timeout: timeout, logger: logger}
}

// Resolve returns the thresholds for configVersion, or the active version when
// configVersion is empty.
//
// Source semantics:
//   - db: loaded from the store.
//   - fallback: store unavailable (error or timeout), compiled-in defaults
//     substituted. Only allowed when no specific version was requested.
//   - missing: a specific version was requested and cannot be served, or the
//     store is empty and unavailable with fallback disabled. The caller must
//     refuse the verdict.
func (r *Resolver) Resolve(ctx context.Context, configVersion string) Resolution {
	if r.store == nil {
		return Resolution{Config: DefaultThresholds(), Source: domain.ConfigSourceFallback}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		cfg *domain.ThresholdsConfig
		err error
	)
	if configVersion == "" {
		cfg, err = r.store.GetActive(ctx)
	} else {
		cfg, err = r.store.GetByVersion(ctx, configVersion)
	}

	switch {
	case err == nil:
		res := Resolution{Config: *cfg, Source: domain.ConfigSourceDB}
		// The hash pins the audit record, so a stored value is never trusted.
		computed := Hash(res.Config)
		if res.Config.ThresholdsHash != "" && res.Config.ThresholdsHash != computed {
			res.Warnings = append(res.Warnings,
				"stored thresholds hash does not match recomputed hash for version "+res.Config.ConfigVersion)
			r.logf("thresholds hash mismatch: version=%s stored=%s computed=%s",
				res.Config.ConfigVersion, res.Config.ThresholdsHash, computed)
		}
		res.Config.ThresholdsHash = computed
		return res

	case errors.Is(err, storage.ErrNotFound):
		if configVersion == "" {
			// Nothing published yet; defaults are the active version.
			r.logf("no active thresholds published, using compiled-in defaults")
			return Resolution{Config: DefaultThresholds(), Source: domain.ConfigSourceFallback}
		}
		// An explicitly requested version that does not exist must not be
		// silently replaced by defaults.
		r.logf("thresholds version %s not found, failing closed", configVersion)
		return Resolution{Source: domain.ConfigSourceMissing}

	default:
		if configVersion != "" {
			r.logf("thresholds lookup failed for version %s, failing closed: %v", configVersion, err)
			return Resolution{Source: domain.ConfigSourceMissing}
		}
		r.logf("thresholds lookup failed, using compiled-in defaults: %v", err)
		return Resolution{
			Config:   DefaultThresholds(),
			Source:   domain.ConfigSourceFallback,
			Warnings: []string{"thresholds store unavailable, compiled-in defaults applied"},
		}
	}
}

func (r *Resolver) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
