package simulator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cache"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/logger"
)

// CachedSimulator memoizes responses by a hash of the full request.
// Only successful responses are stored. Cache errors fall through to the inner simulator.
type CachedSimulator struct {
	inner     Simulator
	store     cache.Cache
	namespace string
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewCached wraps inner; namespace separates models with different parameters sharing one store
func NewCached(inner Simulator, store cache.Cache, namespace string) *CachedSimulator {
	return &CachedSimulator{inner: inner, store: store, namespace: namespace}
}

// RequestKey is the cache key of a request
func RequestKey(namespace string, req StepRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode step request: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *CachedSimulator) SimulateStep(ctx context.Context, req StepRequest) (StepResponse, error) {
	key, err := RequestKey(c.namespace, req)
	if err != nil {
		return StepResponse{}, err
	}

	if data, ok, err := c.store.Get(ctx, key); err != nil {
		logger.Warn("step cache read failed", "step", req.Step, "error", err)
	} else if ok {
		var resp StepResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			c.hits.Add(1)
			return resp, nil
		}
	}

	c.misses.Add(1)
	resp, err := c.inner.SimulateStep(ctx, req)
	if err != nil {
		return resp, err
	}
	if data, err := json.Marshal(resp); err == nil {
		if err := c.store.Set(ctx, key, data); err != nil {
			logger.Warn("step cache write failed", "step", req.Step, "error", err)
		}
	}
	return resp, nil
}

// Stats returns the hit and miss counters
func (c *CachedSimulator) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
