package compiler

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of compilations running at once.
type Pool struct {
	c   Compiler
	sem *semaphore.Weighted
	n   int
}

// NewPool wraps c so at most workers compilations run concurrently.
// workers <= 0 means one per CPU.
func NewPool(c Compiler, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{c: c, sem: semaphore.NewWeighted(int64(workers)), n: workers}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.n
}

// Compile waits for a free slot and compiles req.
func (p *Pool) Compile(ctx context.Context, req Request) (*Artifact, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.c.Compile(ctx, req)
}
