// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about forest operations, pipeline execution, and cache
// operations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetForestHooks(&myForestHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Forest().OnBalanceRound(ctx, round, sent, changed, duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Forest Hooks
// =============================================================================

// ForestHooks receives events from distributed forest operations.
type ForestHooks interface {
	// OnBalanceRound records one cross-block balance round: the number of
	// boundary candidates sent to other ranks and whether any tree changed.
	OnBalanceRound(ctx context.Context, round, candidatesSent int, changed bool, duration time.Duration)

	// OnExchange records one collective exchange: the operation it serves
	// and the total payload size sent by this rank.
	OnExchange(ctx context.Context, op string, payloadBytes int)

	// OnRepartition records a repartition: trees shipped away from this
	// rank and trees received.
	OnRepartition(ctx context.Context, sent, received int, duration time.Duration)

	// OnNumbering records node numbering: per-rank owned independent and
	// dependent node counts.
	OnNumbering(ctx context.Context, independent, dependent int, duration time.Duration)
}

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the mesh build pipeline.
type PipelineHooks interface {
	// OnStageStart records the start of a pipeline stage.
	OnStageStart(ctx context.Context, stage string)

	// OnStageComplete records the end of a pipeline stage.
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopForestHooks is a no-op implementation of ForestHooks.
type NoopForestHooks struct{}

func (NoopForestHooks) OnBalanceRound(context.Context, int, int, bool, time.Duration) {}
func (NoopForestHooks) OnExchange(context.Context, string, int)                       {}
func (NoopForestHooks) OnRepartition(context.Context, int, int, time.Duration)        {}
func (NoopForestHooks) OnNumbering(context.Context, int, int, time.Duration)          {}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string)                          {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	forestHooks   ForestHooks   = NoopForestHooks{}
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetForestHooks registers custom forest hooks.
// This should be called once at application startup before any forest operations.
func SetForestHooks(h ForestHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		forestHooks = h
	}
}

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline operations.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Forest returns the registered forest hooks.
func Forest() ForestHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return forestHooks
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	forestHooks = NoopForestHooks{}
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
