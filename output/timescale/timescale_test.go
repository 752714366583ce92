package timescale

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/relex/frame-agent/output/shared"
	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const insertPrefix = `INSERT INTO "frame_info" (analytic_name, analytic_addr, classification, frame_num, frame_timestamp, ` +
	`stream_address, session_id, tags, confidence, analytic_start_time, analytic_end_time, frame_byte_size, ` +
	`box_x1, box_y1, box_x2, box_y2, filters) VALUES `

func newMockSink(t *testing.T) (*Sink, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewSink(logger.WithField("test", t.Name()), db, DefaultTable), mock
}

func TestInsertDefaultRow(t *testing.T) {
	sink, mock := newMockSink(t)
	result := shared.NewTestResult(1)

	mock.ExpectExec(regexp.QuoteMeta(insertPrefix+"($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)")).
		WithArgs("test", "10.1.2.3:50051", nil, int64(1), result.Frame.Timestamp, "rtsp://camera-1/main", "session-1",
			`{"test":"True"}`, 0.0, result.StartTime.UnixMilli(), result.EndTime.UnixMilli(), 12345,
			nil, nil, nil, nil, `{"minConfidence":"0.3"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sink.Deliver(context.Background(), "stream.camera-1.analytic.10.1.2.3", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRowPerRegion(t *testing.T) {
	sink, mock := newMockSink(t)
	result := shared.NewTestResult(2, shared.TestRegions...)
	result.Tags = nil

	mock.ExpectExec(regexp.QuoteMeta(insertPrefix+"($1,")+`.*`+regexp.QuoteMeta("),($18,")+`.*`+regexp.QuoteMeta("$34)")).
		WithArgs(
			"test", "10.1.2.3:50051", "person", int64(2), result.Frame.Timestamp, "rtsp://camera-1/main", "session-1",
			nil, 0.9, result.StartTime.UnixMilli(), result.EndTime.UnixMilli(), 12345,
			10, 20, 110, 220, sqlmock.AnyArg(),
			"test", "10.1.2.3:50051", "car", int64(2), result.Frame.Timestamp, "rtsp://camera-1/main", "session-1",
			nil, 0.6, result.StartTime.UnixMilli(), result.EndTime.UnixMilli(), 12345,
			300, 200, 500, 400, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, sink.Deliver(context.Background(), "t", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFailure(t *testing.T) {
	sink, mock := newMockSink(t)
	mock.ExpectExec("INSERT INTO").WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})

	err := sink.Deliver(context.Background(), "t", shared.NewTestResult(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique_violation")
	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	sink, mock := newMockSink(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "frame_info"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT create_hypertable('frame_info', 'frame_timestamp'`)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, sink.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose(t *testing.T) {
	sink, mock := newMockSink(t)
	assert.Equal(t, "timescale", sink.Name())
	mock.ExpectClose()
	require.NoError(t, sink.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyConfig(t *testing.T) {
	assert.Error(t, (&Config{}).VerifyConfig())
	cfg := NewConfig("postgres://localhost/frames")
	assert.NoError(t, cfg.VerifyConfig())
	assert.Equal(t, DefaultTable, cfg.tableName())
	assert.Equal(t, "timescale", cfg.Type)
}

func TestDSNFromAddress(t *testing.T) {
	assert.Equal(t, "postgres://db:5432/frames?sslmode=disable", DSNFromAddress("db:5432"))
	assert.Equal(t, "postgres://u:p@db/x", DSNFromAddress("postgres://u:p@db/x"))
	assert.Equal(t, "host=db dbname=x", DSNFromAddress("host=db dbname=x"))
	assert.Equal(t, "", DSNFromAddress(""))
}
