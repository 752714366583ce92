// Package timescale writes results as rows of a TimescaleDB hypertable
package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
)

// columns in insertion order; tags first and then fields
var columns = []string{
	"analytic_name",
	"analytic_addr",
	"classification",
	"frame_num",
	"frame_timestamp",
	"stream_address",
	"session_id",
	"tags",
	"confidence",
	"analytic_start_time",
	"analytic_end_time",
	"frame_byte_size",
	"box_x1",
	"box_y1",
	"box_x2",
	"box_y2",
	"filters",
}

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %[1]s (
	analytic_name TEXT NOT NULL,
	analytic_addr TEXT NOT NULL,
	classification TEXT,
	frame_num BIGINT NOT NULL,
	frame_timestamp TIMESTAMPTZ NOT NULL,
	stream_address TEXT NOT NULL,
	session_id TEXT,
	tags JSONB,
	confidence DOUBLE PRECISION NOT NULL,
	analytic_start_time BIGINT NOT NULL,
	analytic_end_time BIGINT NOT NULL,
	frame_byte_size INTEGER NOT NULL,
	box_x1 INTEGER,
	box_y1 INTEGER,
	box_x2 INTEGER,
	box_y2 INTEGER,
	filters JSONB
)`

const hypertableTemplate = `SELECT create_hypertable(%[1]s, 'frame_timestamp', if_not_exists => TRUE)`

// Sink inserts one row per region of interest, or a single row without classification if there is none
type Sink struct {
	logger logger.Logger
	db     *sql.DB
	table  string
}

// NewSink creates a Sink on an open database
func NewSink(parentLogger logger.Logger, db *sql.DB, table string) *Sink {
	return &Sink{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "TimescaleSink",
			defs.LabelName:      table,
		}),
		db:    db,
		table: table,
	}
}

func (s *Sink) Name() string {
	return "timescale"
}

// EnsureSchema creates the table and turns it into a hypertable
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schemaTemplate, pq.QuoteIdentifier(s.table))); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(hypertableTemplate, pq.QuoteLiteral(s.table))); err != nil {
		return fmt.Errorf("create hypertable %s: %w", s.table, err)
	}
	s.logger.Info("schema ready")
	return nil
}

func (s *Sink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	query, args, err := s.buildInsert(result)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("insert frame %d: %s (%s): %w", result.Frame.Number, pqErr.Code.Name(), pqErr.Message, err)
		}
		return fmt.Errorf("insert frame %d: %w", result.Frame.Number, err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) buildInsert(result *base.Result) (string, []any, error) {
	tags, err := marshalJSONB(result.Tags)
	if err != nil {
		return "", nil, fmt.Errorf("marshal tags: %w", err)
	}
	filters, err := marshalJSONB(result.Analytic.Filters)
	if err != nil {
		return "", nil, fmt.Errorf("marshal filters: %w", err)
	}

	common := func(classification any, confidence float64) []any {
		return []any{
			result.Analytic.Name,
			result.Analytic.Address,
			classification,
			int64(result.Frame.Number),
			result.Frame.Timestamp,
			result.StreamAddress,
			result.SessionID,
			tags,
			confidence,
			result.StartTime.UnixMilli(),
			result.EndTime.UnixMilli(),
			result.Frame.ByteSize,
		}
	}

	var rows [][]any
	if len(result.RegionsOfInterest) == 0 {
		rows = append(rows, append(common(nil, 0.0), nil, nil, nil, nil, filters))
	}
	for _, roi := range result.RegionsOfInterest {
		row := common(roi.Classification, roi.Confidence)
		row = append(row, roi.Box.X1, roi.Box.Y1, roi.Box.X2, roi.Box.Y2, filters)
		rows = append(rows, row)
	}
	return buildMultiRowInsert(pq.QuoteIdentifier(s.table), rows), flatten(rows), nil
}

func buildMultiRowInsert(quotedTable string, rows [][]any) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(quotedTable)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	n := 0
	for i := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(",")
			}
			n++
			fmt.Fprintf(&b, "$%d", n)
		}
		b.WriteString(")")
	}
	return b.String()
}

func flatten(rows [][]any) []any {
	args := make([]any, 0, len(rows)*len(columns))
	for _, row := range rows {
		args = append(args, row...)
	}
	return args
}

// marshalJSONB returns nil for empty maps so that the column is NULL
func marshalJSONB(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
