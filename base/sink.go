package base

import (
	"context"
)

// ResultSink is a downstream consumer of analytic results, e.g. message bus or database
//
// Deliver may block or fail. Each sink is called sequentially by the dispatcher of one pipeline, one result at a time.
type ResultSink interface {
	Name() string
	Deliver(ctx context.Context, topic string, result *Result) error
	Close() error
}
