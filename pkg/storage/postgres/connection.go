package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/platinummonkey/barbell/pkg/observability"
)

// ConnectionManager owns the PostgreSQL connection pool.
// Every store reads from the primary: membership must be resolved fresh on
// each request, so replica lag is not acceptable.
type ConnectionManager struct {
	primary *sql.DB
	config  ConnectionConfig
	logger  *observability.Logger
}

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// NewConnectionManager opens and pings the primary
func NewConnectionManager(config ConnectionConfig, logger *observability.Logger) (*ConnectionManager, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	primary, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary connection: %w", err)
	}
	configurePool(primary, config)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if err := primary.PingContext(ctx); err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}

	logger.WithField("max_conns", config.MaxConns).Info("Connection manager initialized")
	return newConnectionManager(primary, config, logger), nil
}

func newConnectionManager(db *sql.DB, config ConnectionConfig, logger *observability.Logger) *ConnectionManager {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ConnectionManager{
		primary: db,
		config:  config,
		logger:  logger,
	}
}

func configurePool(db *sql.DB, config ConnectionConfig) {
	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)
}

// Primary returns the database handle
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// HealthCheck pings the primary
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.primary.Stats()
}

// Close closes the pool
func (cm *ConnectionManager) Close() error {
	if err := cm.primary.Close(); err != nil {
		return fmt.Errorf("primary close error: %w", err)
	}
	return nil
}

// StartStatsRoutine copies pool statistics into metrics every interval until ctx is done
func (cm *ConnectionManager) StartStatsRoutine(ctx context.Context, metrics *observability.Metrics, interval time.Duration) {
	if interval == 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(cm.logger, "postgres.StatsRoutine")

		for {
			select {
			case <-ticker.C:
				metrics.RecordDBStats(cm.Stats())
			case <-ctx.Done():
				return
			}
		}
	}()
}
