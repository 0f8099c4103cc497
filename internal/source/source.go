// Package source defines where notification events come from.
package source

import (
	"context"

	"notifsnd/internal/classify"
)

// Sink accepts events for the pipeline.
type Sink interface {
	Submit(ctx context.Context, ev classify.Event) error
}

// Source feeds a Sink until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
	// Authorized reports whether the source currently has access to the
	// host's notification stream.
	Authorized() bool
}
