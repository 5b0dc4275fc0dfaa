package postgres

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/productos/db"
)

// Querier is the subset of pgx used by the repositories. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connector hands out a live Querier, connecting if needed.
type Connector interface {
	Querier(ctx context.Context) (Querier, error)
}

var _ Connector = (*Provider)(nil)

// Provider owns the single database handle of the process. The handle is
// opened lazily on first use and reopened after Close.
type Provider struct {
	cfg Config
	lg  *zap.Logger

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewProvider returns a Provider for cfg. It does not connect.
func NewProvider(cfg Config, lg *zap.Logger) *Provider {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Provider{cfg: cfg, lg: lg}
}

// Connect opens the handle if it is not open yet and verifies it with a ping,
// so invalid credentials and unreachable servers fail here rather than on the
// first query. Failures are returned as *ConnectionError.
func (p *Provider) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return p.pool, nil
	}

	poolCfg, err := pgxpool.ParseConfig(p.cfg.URL())
	if err != nil {
		return nil, &ConnectionError{Target: p.cfg.Target(), Err: errors.Wrap(err, "parse config")}
	}
	if p.cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = p.cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &ConnectionError{Target: p.cfg.Target(), Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		p.lg.Error("Database connection failed",
			zap.String("target", p.cfg.Target()),
			zap.Error(err),
		)
		return nil, &ConnectionError{Target: p.cfg.Target(), Err: err}
	}

	p.logServerInfo(ctx, pool)
	p.pool = pool
	return pool, nil
}

func (p *Provider) logServerInfo(ctx context.Context, pool *pgxpool.Pool) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		p.lg.Info("Connected to database", zap.String("target", p.cfg.Target()))
		return
	}
	defer conn.Release()

	pc := conn.Conn().PgConn()
	p.lg.Info("Connected to database",
		zap.String("target", p.cfg.Target()),
		zap.String("server_version", pc.ParameterStatus("server_version")),
		zap.String("encoding", pc.ParameterStatus("server_encoding")),
		zap.Uint32("backend_pid", pc.PID()),
	)
}

// Querier implements Connector.
func (p *Provider) Querier(ctx context.Context) (Querier, error) {
	return p.Connect(ctx)
}

// IsAlive reports whether a handle is open. It never touches the network.
func (p *Provider) IsAlive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool != nil
}

// Ping checks the server with a round trip, connecting first if needed.
func (p *Provider) Ping(ctx context.Context) error {
	pool, err := p.Connect(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return &ConnectionError{Target: p.cfg.Target(), Err: err}
	}
	return nil
}

// Close releases the handle. Calling it on a closed or never opened
// Provider is a no-op.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
	p.lg.Info("Database connection closed", zap.String("target", p.cfg.Target()))
}

// RunMigrations applies the embedded schema. It is idempotent.
func RunMigrations(ctx context.Context, conns Connector) error {
	q, err := conns.Querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "running migrations")
	}
	return nil
}
