package timescale

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/base/bconfig"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
)

// DefaultTable is the hypertable written when no table is configured
const DefaultTable = "frame_info"

// Config defines the TimescaleDB sink
type Config struct {
	bconfig.Header `yaml:",inline"`
	DSN            string `yaml:"dsn"`          // e.g. "postgres://user:pass@db:5432/frames?sslmode=disable"
	Table          string `yaml:"table"`        // default "frame_info"
	CreateSchema   bool   `yaml:"createSchema"` // create the table and hypertable at startup if missing
}

// DefaultDatabase is the database name used for "host:port" addresses
const DefaultDatabase = "frames"

// NewConfig creates a Config for the database address in configuration requests
//
// The address is either a DSN or "host:port" of a server accepting unencrypted connections.
func NewConfig(address string) *Config {
	return &Config{
		Header: bconfig.Header{Type: "timescale"},
		DSN:    DSNFromAddress(address),
	}
}

// DSNFromAddress converts "host:port" to a DSN and returns anything else as it is
func DSNFromAddress(address string) string {
	if address == "" || strings.Contains(address, "://") || strings.Contains(address, "=") {
		return address
	}
	return fmt.Sprintf("postgres://%s/%s?sslmode=disable", address, DefaultDatabase)
}

// NewSink opens the database and checks the connection
func (cfg *Config) NewSink(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.ResultSink, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defs.SinkDeliveryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sink := NewSink(parentLogger, db, cfg.tableName())
	if cfg.CreateSchema {
		if err := sink.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return sink, nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.DSN == "" {
		return fmt.Errorf(".dsn is unspecified")
	}
	return nil
}

func (cfg *Config) tableName() string {
	if cfg.Table == "" {
		return DefaultTable
	}
	return cfg.Table
}
