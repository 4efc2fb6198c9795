package core

import (
	"context"

	"github.com/lumenqi/lumen-core/pkg/orchestrator"
)

// CycleResult is delivered by ForceEvolutionCycleAsync.
type CycleResult struct {
	Report CycleReport
	Error  error
}

// GenerateAsync runs Generate on its own goroutine. The channel receives
// exactly one response and is then closed. Close waits for pending calls.
//
// Example:
//
//	respChan := companion.GenerateAsync(ctx, "tell me a story", core.Context{}, nil)
//	resp := <-respChan
func (c *Companion) GenerateAsync(ctx context.Context, query string, qctx Context, history []Turn) <-chan Response {
	resultChan := make(chan Response, 1)
	if !c.track() {
		resultChan <- Response{Content: orchestrator.Apology, Source: SourceNone}
		close(resultChan)
		return resultChan
	}

	go func() {
		defer c.wg.Done()
		resultChan <- c.Generate(ctx, query, qctx, history)
		close(resultChan)
	}()
	return resultChan
}

// ForceEvolutionCycleAsync runs ForceEvolutionCycle on its own goroutine.
func (c *Companion) ForceEvolutionCycleAsync(ctx context.Context) <-chan CycleResult {
	resultChan := make(chan CycleResult, 1)
	if !c.track() {
		resultChan <- CycleResult{Error: NewCoreError("ForceEvolutionCycle", ErrClosed)}
		close(resultChan)
		return resultChan
	}

	go func() {
		defer c.wg.Done()
		report, err := c.ForceEvolutionCycle(ctx)
		resultChan <- CycleResult{Report: report, Error: err}
		close(resultChan)
	}()
	return resultChan
}

// track registers a pending async call unless the companion is closing.
func (c *Companion) track() bool {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()
	if c.closing {
		return false
	}
	c.wg.Add(1)
	return true
}

// drain stops accepting async calls and waits for pending ones.
func (c *Companion) drain() {
	c.asyncMu.Lock()
	c.closing = true
	c.asyncMu.Unlock()
	c.wg.Wait()
}
