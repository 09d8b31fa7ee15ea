package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func (eng *Engine) dirtyCh() chan struct{} {
	eng.dirtyOnce.Do(func() {
		eng.dirty = make(chan struct{}, 1)
	})
	return eng.dirty
}

// Signals the persister that there is unsaved state. Never blocks; multiple signals coalesce.
func (eng *Engine) markDirty() {
	select {
	case eng.dirtyCh() <- struct{}{}:
	default:
	}
}

// Saves state in the background whenever it changes, until the context is cancelled. A final save is attempted on the way out.
func (eng *Engine) RunPersister(ctx context.Context) error {
	if eng.Persist == nil {
		<-ctx.Done()
		return nil
	}
	ch := eng.dirtyCh()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := eng.Flush(flushCtx); err != nil {
				eng.Logger.Error("final state save failed", "err", err)
			}
			return nil
		case <-ch:
			if err := eng.Flush(ctx); err != nil {
				// state stays in memory; the next change triggers another attempt
				eng.Logger.Error("state save failed", "err", err)
			}
		}
	}
}

// Synchronously saves a snapshot of the examples and classifier state. Each save is retried once.
func (eng *Engine) Flush(ctx context.Context) error {
	if eng.Persist == nil {
		return nil
	}
	eng.flushMu.Lock()
	defer eng.flushMu.Unlock()

	exs, err := eng.Examples.All(ctx)
	if err != nil {
		return fmt.Errorf("snapshotting examples: %w", err)
	}
	st := eng.State()

	var errs []error
	if err := retryOnce(func() error { return eng.Persist.SaveExamples(ctx, exs) }); err != nil {
		persistFailures.WithLabelValues("save_examples").Inc()
		errs = append(errs, err)
	}
	if err := retryOnce(func() error { return eng.Persist.SaveClassifierState(ctx, st) }); err != nil {
		persistFailures.WithLabelValues("save_state").Inc()
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		eng.Logger.Debug("state saved", "examples", len(exs), "trained", st.Trained)
	}
	return errors.Join(errs...)
}

func retryOnce(f func() error) error {
	if err := f(); err == nil {
		return nil
	}
	return f()
}
