// Package observe bundles structured logging and tracing for the plugin.
package observe

import (
	"context"
	"io"

	"github.com/felixgeelhaar/bolt/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("searchpin")

// Observer handles logging and tracing.
type Observer struct {
	log *bolt.Logger
}

// New creates a new Observer with console output. Unless debug is set, only
// warnings and errors are shown; best-effort host-API failures stay silent.
func New(out io.Writer, debug bool) *Observer {
	handler := bolt.NewConsoleHandler(out)
	l := bolt.New(handler)

	if debug {
		l.SetLevel(bolt.DEBUG)
	} else {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// NewJSON creates a new Observer with JSON output.
func NewJSON(out io.Writer, debug bool) *Observer {
	handler := bolt.NewJSONHandler(out)
	l := bolt.New(handler)

	if debug {
		l.SetLevel(bolt.DEBUG)
	} else {
		l.SetLevel(bolt.WARN)
	}

	return &Observer{
		log: l,
	}
}

// Log returns the underlying logger.
func (o *Observer) Log() *bolt.Logger {
	return o.log
}

// SetDebug flips the log level at runtime when the settings toggle changes.
func (o *Observer) SetDebug(debug bool) {
	if debug {
		o.log.SetLevel(bolt.DEBUG)
	} else {
		o.log.SetLevel(bolt.WARN)
	}
}

// StartSpan starts a new OTel span.
func (o *Observer) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// Close ensures any buffered logs or traces are flushed (placeholder).
func (o *Observer) Close() error {
	return nil
}
