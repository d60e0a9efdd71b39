package transform

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool 限制同时进行的缩放数量，排队的调用方可通过 ctx 放弃等待。
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	limits Limits
}

// NewPool 创建容量为 size、使用 DefaultLimits 的 Pool，size <= 0 时使用 GOMAXPROCS。
func NewPool(size int) *Pool {
	return NewLimitedPool(size, DefaultLimits())
}

// NewLimitedPool 同 NewPool，但使用给定的像素上限，零值字段取默认值。
func NewLimitedPool(size int, limits Limits) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   size,
		limits: limits.withDefaults(),
	}
}

// Limits 返回生效的像素上限。
func (p *Pool) Limits() Limits {
	return p.limits
}

// Size 返回并发上限。
func (p *Pool) Size() int {
	return p.size
}

// Resize 在获得执行槽位后调用 Resize。
func (p *Pool) Resize(ctx context.Context, src []byte, width int) (*Result, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return ResizeWithLimits(src, width, p.limits)
}
