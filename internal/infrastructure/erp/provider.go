package erp

import (
	"context"

	"go.uber.org/zap"

	erpdomain "github.com/erpbridge/backend/internal/domain/erp"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/config"
	"github.com/erpbridge/backend/internal/infrastructure/engine"
)

// BatchDeliverer is the delivery surface the import service consumes
type BatchDeliverer interface {
	Deliver(ctx context.Context, endpoint string, records []engine.MappedRecord, progress ProgressFunc) (*Report, error)
}

// Provider builds deliverers bound to the connection flagged as default,
// falling back to the static credentials from configuration. Breakers are
// shared across deliverers so circuit state carries over between jobs.
type Provider struct {
	connections erpdomain.ConnectionRepository
	cfg         config.ERPConfig
	breakers    *BreakerSet
	logger      *zap.Logger
}

// NewProvider creates a deliverer provider
func NewProvider(connections erpdomain.ConnectionRepository, cfg config.ERPConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		connections: connections,
		cfg:         cfg,
		breakers:    NewBreakerSet(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:      logger,
	}
}

// DelivererFor returns a deliverer for the current default connection
func (p *Provider) DelivererFor(ctx context.Context) (BatchDeliverer, error) {
	client, err := p.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	return NewDeliverer(client, p.cfg,
		WithBreakers(p.breakers),
		WithDelivererLogger(p.logger),
	), nil
}

// ClientFor returns a bare client for the current default connection,
// used by the connection test endpoint and the readiness probe
func (p *Provider) ClientFor(ctx context.Context) (*Client, error) {
	return p.clientFor(ctx)
}

// BreakerStates exposes the shared circuit breaker states
func (p *Provider) BreakerStates() map[string]BreakerState {
	return p.breakers.States()
}

func (p *Provider) clientFor(ctx context.Context) (*Client, error) {
	conn, err := p.connections.FindDefault(ctx)
	if err != nil {
		if err != shared.ErrNotFound {
			return nil, err
		}
		if p.cfg.BaseURL == "" {
			return nil, ErrNotConfigured
		}
		return NewClient(p.cfg), nil
	}

	return NewClientWithCredentials(Credentials{
		BaseURL:   conn.BaseURL,
		APIKey:    conn.APIKey,
		APISecret: conn.APISecret,
	}, p.cfg.Timeout), nil
}
