package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NonRetriableError marks a terminal failure: retrying cannot change the
// outcome, so the run stops immediately and the triggering event is dropped.
type NonRetriableError struct {
	Err error
}

func (e *NonRetriableError) Error() string {
	return fmt.Sprintf("non-retriable: %v", e.Err)
}

func (e *NonRetriableError) Unwrap() error {
	return e.Err
}

// NewNonRetriable wraps err as terminal.
func NewNonRetriable(err error) error {
	return &NonRetriableError{Err: err}
}

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeDropped means a terminal failure: no retry can ever succeed.
	OutcomeDropped Outcome = "dropped"
	// OutcomeFailed means the retry budget was exhausted on transient errors.
	OutcomeFailed Outcome = "failed"
)

// Terminal reports whether the run should not be attempted again.
func (o Outcome) Terminal() bool {
	return o == OutcomeCompleted || o == OutcomeDropped || o == OutcomeFailed
}

// Step is handed to workflow functions for checkpointed execution.
type Step struct {
	runID string
	store CheckpointStore
}

// Run executes fn exactly once per run: a checkpoint hit short-circuits into
// dest without recomputing. Results round-trip through JSON, so step outputs
// must be JSON-serializable.
func (s *Step) Run(ctx context.Context, stepID string, dest any, fn func(context.Context) (any, error)) error {
	raw, ok, err := s.store.Get(ctx, s.runID, stepID)
	if err != nil {
		return fmt.Errorf("checkpoint read %q: %w", stepID, err)
	}
	if ok {
		if dest == nil {
			return nil
		}
		return json.Unmarshal(raw, dest)
	}

	out, err := fn(ctx)
	if err != nil {
		return err
	}

	raw, err = json.Marshal(out)
	if err != nil {
		return fmt.Errorf("checkpoint encode %q: %w", stepID, err)
	}
	if err := s.store.Put(ctx, s.runID, stepID, raw); err != nil {
		return fmt.Errorf("checkpoint write %q: %w", stepID, err)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Func is a workflow body. It is re-entered on retry with the same run id;
// checkpointed steps resume from their stored results.
type Func func(ctx context.Context, step *Step) error

// Engine executes workflow functions with bounded retry and step resume.
type Engine struct {
	store   CheckpointStore
	logger  *zap.Logger
	backoff time.Duration
}

// NewEngine builds an engine over the given checkpoint store.
func NewEngine(store CheckpointStore, logger *zap.Logger, backoff time.Duration) *Engine {
	return &Engine{store: store, logger: logger, backoff: backoff}
}

// Execute runs fn under runID, retrying transient failures up to maxRetries
// additional attempts. A NonRetriableError stops the run at once. The
// returned outcome is always terminal; failures never propagate as errors to
// the caller beyond context cancellation.
func (e *Engine) Execute(ctx context.Context, runID string, fn Func, maxRetries int) Outcome {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				e.logger.Warn("workflow cancelled", zap.String("run_id", runID))
				return OutcomeFailed
			case <-time.After(e.backoff):
			}
		}

		err := fn(ctx, &Step{runID: runID, store: e.store})
		if err == nil {
			if attempt > 0 {
				e.logger.Info("workflow recovered",
					zap.String("run_id", runID),
					zap.Int("attempt", attempt))
			}
			return OutcomeCompleted
		}

		var terminal *NonRetriableError
		if errors.As(err, &terminal) {
			e.logger.Warn("workflow dropped",
				zap.String("run_id", runID),
				zap.Error(terminal.Err))
			return OutcomeDropped
		}

		lastErr = err
		e.logger.Warn("workflow attempt failed",
			zap.String("run_id", runID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	e.logger.Error("workflow failed after retries",
		zap.String("run_id", runID),
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr))
	return OutcomeFailed
}
