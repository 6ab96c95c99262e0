package engine

import "context"

// ProgressFunc receives coarse pipeline progress. Stages arrive in order:
// shades, assign, extract, and for exports mesh (per band) and write.
type ProgressFunc func(stage string, done, total int)

// RenderOutcome is what a render job delivers on its channel. A superseded
// or stale job carries context.Canceled and no result.
type RenderOutcome struct {
	Result *RenderResult
	Err    error
}

// ExportOutcome is what an export job delivers on its channel.
type ExportOutcome struct {
	Result *ExportResult
	Err    error
}

// RenderAsync starts a full render in the background and returns its
// result channel. The configuration is snapshotted now; any in-flight
// render is cancelled and will deliver context.Canceled. A job whose
// snapshot went stale before completion, because a newer render started
// or the session was mutated, also delivers context.Canceled, never its
// result.
func (e *Engine) RenderAsync(ctx context.Context) <-chan RenderOutcome {
	out := make(chan RenderOutcome, 1)

	snap, err := e.snapshot()
	if err != nil {
		out <- RenderOutcome{Err: err}
		close(out)
		return out
	}

	jobCtx, serial := e.startRender(ctx)
	go func() {
		defer close(out)
		res, err := e.render(jobCtx, snap)
		if !e.finishRender(serial, snap.gen) {
			out <- RenderOutcome{Err: context.Canceled}
			return
		}
		out <- RenderOutcome{Result: res, Err: err}
	}()
	return out
}

// ExportAsync starts a full export in the background with the same
// supersede semantics as RenderAsync. Renders and exports supersede
// independently.
func (e *Engine) ExportAsync(ctx context.Context, opts ExportOptions) <-chan ExportOutcome {
	out := make(chan ExportOutcome, 1)

	snap, err := e.snapshot()
	if err != nil {
		out <- ExportOutcome{Err: err}
		close(out)
		return out
	}

	jobCtx, serial := e.startExport(ctx)
	go func() {
		defer close(out)
		res, err := e.export(jobCtx, snap, opts)
		if !e.finishExport(serial, snap.gen) {
			out <- ExportOutcome{Err: context.Canceled}
			return
		}
		out <- ExportOutcome{Result: res, Err: err}
	}()
	return out
}

// startRender cancels any in-flight render and registers a new one. The
// returned context is cancelled when a newer render starts.
func (e *Engine) startRender(ctx context.Context) (context.Context, uint64) {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()

	if e.renderCancel != nil {
		e.renderCancel()
	}
	e.renderSerial++
	jobCtx, cancel := context.WithCancel(ctx)
	e.renderCancel = cancel
	return jobCtx, e.renderSerial
}

// finishRender reports whether the job may deliver its result: it must
// still be the latest render and its snapshot generation must still be
// current. Either way the job's context is released.
func (e *Engine) finishRender(serial, gen uint64) bool {
	e.jobMu.Lock()
	current := serial == e.renderSerial
	if current && e.renderCancel != nil {
		e.renderCancel()
		e.renderCancel = nil
	}
	e.jobMu.Unlock()
	if !current {
		return false
	}

	e.mu.RLock()
	fresh := gen == e.gen
	e.mu.RUnlock()
	return fresh
}

func (e *Engine) startExport(ctx context.Context) (context.Context, uint64) {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()

	if e.exportCancel != nil {
		e.exportCancel()
	}
	e.exportSerial++
	jobCtx, cancel := context.WithCancel(ctx)
	e.exportCancel = cancel
	return jobCtx, e.exportSerial
}

func (e *Engine) finishExport(serial, gen uint64) bool {
	e.jobMu.Lock()
	current := serial == e.exportSerial
	if current && e.exportCancel != nil {
		e.exportCancel()
		e.exportCancel = nil
	}
	e.jobMu.Unlock()
	if !current {
		return false
	}

	e.mu.RLock()
	fresh := gen == e.gen
	e.mu.RUnlock()
	return fresh
}
