package session

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink is notified when the session changes. Tokens are never passed on.
type Sink interface {
	SessionEstablished(ctx context.Context)
	SessionCleared(ctx context.Context, reason Reason)
}

// SinkFuncs adapts plain functions to a Sink. Nil funcs are skipped.
type SinkFuncs struct {
	Established func(ctx context.Context)
	Cleared     func(ctx context.Context, reason Reason)
}

var _ Sink = SinkFuncs{}

func (s SinkFuncs) SessionEstablished(ctx context.Context) {
	if s.Established != nil {
		s.Established(ctx)
	}
}

func (s SinkFuncs) SessionCleared(ctx context.Context, reason Reason) {
	if s.Cleared != nil {
		s.Cleared(ctx, reason)
	}
}

// LogSink writes one log line per session event.
type LogSink struct {
	Log zerolog.Logger
}

var _ Sink = LogSink{}

func (l LogSink) SessionEstablished(context.Context) {
	l.Log.Info().Msg("Signed in")
}

func (l LogSink) SessionCleared(_ context.Context, reason Reason) {
	l.Log.Info().Str("reason", string(reason)).Msg("Signed out")
}
