package cli

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/explain"
	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/persist"
	"github.com/ppiankov/factstrip/internal/session"
	"github.com/ppiankov/factstrip/internal/store"
	"github.com/ppiankov/factstrip/internal/transport"
	"github.com/ppiankov/factstrip/internal/verify"
)

// openSession loads the effective config and builds a session from it
func openSession() (*session.Session, model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, cfg, err
	}
	sess, err := buildSession(cfg, logger)
	return sess, cfg, err
}

// buildSession wires transport, backend, store and explainer from cfg
func buildSession(cfg model.Config, logger *zap.Logger) (*session.Session, error) {
	bc := cfg.Backend

	// one limiter for both clients, so an explanation endpoint on the
	// backend host draws from the backend's budget
	limiter := transport.NewLimiter(bc.RatePerSecond, bc.Burst)

	// the controller owns the deadline, so the client carries none
	backendClient := transport.NewHTTPClient(transport.Options{
		Limiter:    limiter,
		HTTPProxy:  bc.HTTPProxy,
		HTTPSProxy: bc.HTTPSProxy,
		NoProxy:    bc.NoProxy,
	})
	backend := verify.NewHTTPBackend(bc.URL, backendClient, bc.UserAgent)

	explainClient := transport.NewHTTPClient(transport.Options{
		Timeout:    seconds(cfg.Explain.TimeoutSeconds),
		Limiter:    limiter,
		HTTPProxy:  bc.HTTPProxy,
		HTTPSProxy: bc.HTTPSProxy,
		NoProxy:    bc.NoProxy,
	})
	gen, err := explain.NewGenerator(cfg.Explain, bc.URL, explainClient)
	if err != nil {
		return nil, err
	}
	if gen != nil {
		logger.Debug("explanation generator ready", zap.String("provider", gen.Name()))
		if err := limitExplainHost(limiter, cfg, gen, logger); err != nil {
			return nil, err
		}
	}
	explainer := explain.NewService(gen, logger)
	explainer.SetTimeout(seconds(cfg.Explain.TimeoutSeconds))

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open history storage: %w", err)
	}

	sess, err := session.Open(session.Options{
		Backend:     backend,
		Store:       st,
		Explainer:   explainer,
		FillMissing: cfg.Explain.FillMissing,
		Persist: persist.Options{
			Key:        cfg.Storage.Key,
			QuotaBytes: cfg.Storage.QuotaBytes,
			Capacity:   cfg.History.Capacity,
		},
		Timeout: seconds(bc.TimeoutSeconds),
		Logger:  logger,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return sess, nil
}

// limitExplainHost gives the explanation provider its own rate when
// explain.rate_per_second is set and the provider lives off the backend host
func limitExplainHost(limiter *transport.Limiter, cfg model.Config, gen explain.Generator, logger *zap.Logger) error {
	ep, ok := gen.(explain.Endpointer)
	if !ok || cfg.Explain.RatePerSecond <= 0 {
		return nil
	}

	host, err := transport.HostKey(ep.Endpoint())
	if err != nil {
		return fmt.Errorf("explanation endpoint: %w", err)
	}
	if backendHost, err := transport.HostKey(cfg.Backend.URL); err == nil && backendHost == host {
		logger.Debug("explanation provider shares the backend rate", zap.String("host", host))
		return nil
	}

	if err := limiter.SetHostRate(ep.Endpoint(), cfg.Explain.RatePerSecond, cfg.Explain.Burst); err != nil {
		return fmt.Errorf("explanation endpoint: %w", err)
	}
	logger.Debug("explanation provider rate set",
		zap.String("host", host),
		zap.Float64("rate_per_second", cfg.Explain.RatePerSecond))
	return nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
