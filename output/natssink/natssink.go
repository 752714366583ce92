// Package natssink publishes results to NATS subjects
package natssink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/frame-agent/output/shared"
	"github.com/relex/gotils/logger"
)

// ErrMessageTooLarge is returned for results exceeding maxMessageSize after encoding
var ErrMessageTooLarge = fmt.Errorf("message too large")

type natsSink struct {
	logger   logger.Logger
	conn     *nats.Conn
	encoding shared.Encoding
	compress bool
	maxSize  int
	prefix   string
}

// NewSink connects to the NATS server in config
func NewSink(parentLogger logger.Logger, config Config) (*natsSink, error) {
	encoding, err := shared.ParseEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}
	slogger := parentLogger.WithFields(logger.Fields{
		defs.LabelComponent: "NATSSink",
		defs.LabelRemote:    config.URL,
	})
	conn, err := nats.Connect(config.URL,
		nats.Name("frame-agent"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.Timeout(defs.SinkDeliveryTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slogger.Warn("disconnected: ", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slogger.Info("reconnected to ", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", config.URL, err)
	}
	slogger.Info("connected")

	maxSize := int(config.MaxMessageSize.Bytes())
	if serverMax := int(conn.MaxPayload()); serverMax > 0 && (maxSize == 0 || maxSize > serverMax) {
		maxSize = serverMax
	}
	return &natsSink{
		logger:   slogger,
		conn:     conn,
		encoding: encoding,
		compress: config.Compress,
		maxSize:  maxSize,
		prefix:   config.SubjectPrefix,
	}, nil
}

func (s *natsSink) Name() string {
	return "nats"
}

func (s *natsSink) Deliver(ctx context.Context, topic string, result *base.Result) error {
	_, err := s.DeliverSized(ctx, topic, result)
	return err
}

// DeliverSized publishes the encoded result and flushes it to the server
func (s *natsSink) DeliverSized(ctx context.Context, topic string, result *base.Result) (int, error) {
	data, err := shared.EncodeResult(s.encoding, result)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	if s.compress {
		if data, err = shared.CompressGzip(data); err != nil {
			return 0, fmt.Errorf("compress: %w", err)
		}
	}
	if s.maxSize > 0 && len(data) > s.maxSize {
		return 0, fmt.Errorf("%w: frame %d is %d bytes, max %d", ErrMessageTooLarge, result.Frame.Number, len(data), s.maxSize)
	}

	subject := topic
	if s.prefix != "" {
		subject = s.prefix + "." + topic
	}
	if err := s.conn.Publish(subject, data); err != nil {
		return 0, err
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (s *natsSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return err
	}
	s.logger.Info("closed")
	return nil
}
