// Package instancepool keeps a bounded set of warm guest instances ready
// to serve calls, so a burst of concurrent invocations does not have to
// pay instantiation cost on the hot path. It backs the optional
// "multiple instances may run in parallel" concurrency model: pooling is
// an ambient performance concern layered on top of the call protocol, not
// part of it.
package instancepool

import (
	"context"
	"fmt"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/orama-labs/wasmrt/pkg/wasmerrors"
	"github.com/orama-labs/wasmrt/pkg/wasminstance"
)

// Initializer optionally prepares a freshly instantiated instance (e.g.
// priming a cache, running a guest-side warm-up export) before it is
// offered into the pool.
type Initializer func(ctx context.Context, inst *wasminstance.Instance) error

// Pool is a fixed-size ring buffer of warm instances of one compiled
// module.
type Pool struct {
	rb        *queue.RingBuffer
	instances []*wasminstance.Instance
	logger    *zap.Logger
}

// New instantiates size instances of compiled and returns a Pool ready to
// serve Get/Return.
func New(ctx context.Context, runtime wazero.Runtime, compiled wazero.CompiledModule, name string, size uint64, logger *zap.Logger, init Initializer) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rb := queue.NewRingBuffer(size)
	instances := make([]*wasminstance.Instance, 0, size)

	for i := uint64(0); i < size; i++ {
		inst, err := wasminstance.Instantiate(ctx, runtime, compiled, fmt.Sprintf("%s-%d", name, i), logger)
		if err != nil {
			return nil, err
		}
		if init != nil {
			if err := init(ctx, inst); err != nil {
				return nil, fmt.Errorf("initializing pooled instance %d: %w", i, err)
			}
		}
		if ok, err := rb.Offer(inst); err != nil || !ok {
			return nil, fmt.Errorf("could not add instance %d to pool of size %d: %w", i, size, err)
		}
		instances = append(instances, inst)
	}

	return &Pool{rb: rb, instances: instances, logger: logger}, nil
}

// Get borrows an instance from the pool, waiting up to timeout for one to
// become available.
func (p *Pool) Get(timeout time.Duration) (*wasminstance.Instance, error) {
	v, err := p.rb.Poll(timeout)
	if err != nil {
		return nil, wasmerrors.NewHostCallError("instancepool.Get", wasmerrors.ErrInstancePoolExhausted)
	}
	inst, ok := v.(*wasminstance.Instance)
	if !ok {
		return nil, wasmerrors.NewHostCallError("instancepool.Get", fmt.Errorf("pool held a non-instance value"))
	}
	return inst, nil
}

// Return gives an instance back to the pool. Call this (or accept a
// discarded instance) once a caller is done with it; an instance's arena
// is reset by wasminstance.Instance.Call on its next use, so Return does
// not need to reset it itself.
func (p *Pool) Return(inst *wasminstance.Instance) error {
	ok, err := p.rb.Offer(inst)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot return instance to full pool")
	}
	return nil
}

// Close disposes the ring buffer and closes every pooled instance.
func (p *Pool) Close(ctx context.Context) {
	p.rb.Dispose()
	for _, inst := range p.instances {
		if err := inst.Close(ctx); err != nil {
			p.logger.Warn("failed to close pooled instance", zap.Error(err))
		}
	}
}
