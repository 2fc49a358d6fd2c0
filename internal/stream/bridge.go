// Package stream turns one chat turn into an ordered, finite sequence of
// events: tool notices, text chunks and exactly one terminal event.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/transcript"
)

const tracerName = "github.com/flemzord/agentchat/internal/stream"

// Outcome is how a turn ended.
type Outcome string

// Outcome constants.
const (
	OutcomeDone     Outcome = "done"
	OutcomeError    Outcome = "error"
	OutcomeCanceled Outcome = "canceled"
)

// Observer is notified once per finished turn.
type Observer interface {
	TurnCompleted(outcome Outcome, elapsed time.Duration)
}

// Config controls reply chunking.
type Config struct {
	// ChunkSize is the maximum number of characters per message event.
	ChunkSize int

	// Pacing is the pause between consecutive message events. Zero
	// disables pacing.
	Pacing time.Duration
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{ChunkSize: 10, Pacing: 10 * time.Millisecond}
}

func (c *Config) defaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 10
	}
	if c.Pacing < 0 {
		c.Pacing = 0
	}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithRecorder archives every successful exchange.
func WithRecorder(r transcript.Recorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithObserver reports turn outcomes.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// WithTracerProvider sets the tracer provider used for turn spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bridge) { b.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// Bridge runs chat turns against sessions of a Store.
type Bridge struct {
	store    *session.Store
	cfg      Config
	logger   *slog.Logger
	recorder transcript.Recorder
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// NewBridge creates a Bridge over store.
func NewBridge(store *session.Store, cfg Config, opts ...Option) *Bridge {
	cfg.defaults()
	b := &Bridge{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "stream")
	return b
}

// Respond starts a chat turn for message on the given session.
//
// Lookup failures (session.ErrNotFound) and concurrent turns
// (session.ErrBusy) are returned synchronously and nothing is recorded.
// Otherwise the user message is appended to the history before the
// returned channel yields anything, and the channel delivers tool events,
// then message chunks, then exactly one done or error event before it is
// closed. Canceling ctx stops delivery and closes the channel early.
func (b *Bridge) Respond(ctx context.Context, sessionID, message string) (<-chan Event, error) {
	sess, err := b.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	release, err := sess.BeginTurn()
	if err != nil {
		return nil, err
	}

	started := b.now()
	sess.Append(session.Message{Role: session.RoleUser, Content: message, CreatedAt: started})

	events := make(chan Event)
	go func() {
		defer close(events)
		defer release()
		b.run(ctx, sess, message, started, events)
	}()
	return events, nil
}

func (b *Bridge) run(ctx context.Context, sess *session.Session, message string, started time.Time, events chan<- Event) {
	ctx, span := b.tracer.Start(ctx, "stream.respond",
		trace.WithAttributes(attribute.String("session.id", sess.ID)))
	defer span.End()

	logger := b.logger.With("session", sess.ID)
	t0 := time.Now()
	outcome := OutcomeDone
	defer func() {
		span.SetAttributes(attribute.String("stream.outcome", string(outcome)))
		if b.observer != nil {
			b.observer.TurnCompleted(outcome, time.Since(t0))
		}
	}()

	fail := func(err error) {
		outcome = OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("chat turn failed", "error", err)
		if !send(ctx, events, ErrorEvent(errorMessage(err))) {
			outcome = OutcomeCanceled
		}
	}

	binding, err := sess.Agent(ctx)
	if err != nil {
		fail(fmt.Errorf("%w: %w", ErrAgentNotInitialized, err))
		return
	}

	res, err := binding.Invoke(ctx, message)
	if err != nil {
		if ctx.Err() != nil {
			outcome = OutcomeCanceled
			logger.Info("chat turn canceled", "error", err)
			return
		}
		fail(fmt.Errorf("%w: %w", ErrAgentInvocation, err))
		return
	}

	text, err := ExtractText(res.Content)
	if err != nil {
		fail(err)
		return
	}

	completed := b.now()
	sess.Append(session.Message{
		Role:      session.RoleAssistant,
		Content:   text,
		CreatedAt: completed,
		ToolsUsed: res.ToolsUsed,
	})
	b.record(ctx, logger, transcript.Exchange{
		SessionID:   sess.ID,
		UserMessage: message,
		Reply:       text,
		ToolsUsed:   res.ToolsUsed,
		StartedAt:   started,
		CompletedAt: completed,
	})

	chunks := Chunk(text, b.cfg.ChunkSize)
	span.SetAttributes(
		attribute.Int("stream.chunks", len(chunks)),
		attribute.Int("stream.tools", len(res.ToolsUsed)),
	)

	for _, name := range res.ToolsUsed {
		if !send(ctx, events, ToolEvent(name)) {
			outcome = OutcomeCanceled
			return
		}
	}
	for i, c := range chunks {
		if i > 0 && !pause(ctx, b.cfg.Pacing) {
			outcome = OutcomeCanceled
			return
		}
		if !send(ctx, events, MessageEvent(c)) {
			outcome = OutcomeCanceled
			return
		}
	}
	if !send(ctx, events, DoneEvent()) {
		outcome = OutcomeCanceled
	}
}

// record archives ex. Archive failures never fail the turn.
func (b *Bridge) record(ctx context.Context, logger *slog.Logger, ex transcript.Exchange) {
	if b.recorder == nil {
		return
	}
	if err := b.recorder.Record(context.WithoutCancel(ctx), ex); err != nil {
		logger.Warn("transcript record failed", "error", err)
	}
}

// errorMessage renders the client-facing text of a terminal error event.
// The stream sentinel prefix is an internal classification and is
// dropped when a backend cause is available.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return "Error processing message: Agent returned empty response"
	case errors.Is(err, ErrMalformedResponse):
		return "Error processing message: Agent returned malformed response"
	}
	cause := err
	if errors.Is(err, ErrAgentInvocation) || errors.Is(err, ErrAgentNotInitialized) {
		if u, ok := err.(interface{ Unwrap() []error }); ok {
			if errs := u.Unwrap(); len(errs) == 2 {
				cause = errs[1]
			}
		}
	}
	return "Error processing message: " + cause.Error()
}

func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
