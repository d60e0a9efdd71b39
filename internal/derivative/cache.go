// Package derivative caches computed image derivatives in memory.
//
// Entries are keyed by the full derivation key (source path + width), bounded
// by entry count and evicted least-recently-used first. Concurrent misses on
// the same key are coalesced into a single computation whose result every
// waiter shares; failed computations are never stored.
package derivative

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCapacity 是未显式配置时的最大条目数。
const DefaultCapacity = 500

// Key 唯一标识一个派生结果，不同宽度是不同的条目。
type Key struct {
	Path  string
	Width int
}

// String 输出 singleflight 使用的分组键。
func (k Key) String() string {
	return k.Path + "?w=" + strconv.Itoa(k.Width)
}

// Item 是缓存的派生结果。Data 会被多个请求共享，调用方不得修改。
type Item struct {
	Data      []byte
	MediaType string
}

// ComputeFunc 在未命中时计算派生结果。ctx 与发起请求的生命周期解耦，
// 单个客户端断开不会中止其他等待者共享的计算。
type ComputeFunc func(ctx context.Context) (Item, error)

// Result 描述一次 GetOrCompute 的来源。
type Result struct {
	Item Item
	// Hit 表示直接命中缓存，未等待任何计算。
	Hit bool
	// Shared 表示本次结果来自与其他请求合并的同一次计算。
	Shared bool
}

// Cache 是有界 LRU + 合并计算的派生缓存，可并发使用。
type Cache struct {
	entries  *lru.Cache[Key, Item]
	group    singleflight.Group
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	failures  atomic.Uint64
	computes  atomic.Uint64
}

// Stats 是缓存计数器的快照。
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Failures  uint64 `json:"failures"`
	Computes  uint64 `json:"computes"`
}

// New 创建容量为 capacity 的缓存，capacity <= 0 时使用 DefaultCapacity。
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{capacity: capacity}
	entries, err := lru.NewWithEvict[Key, Item](capacity, func(Key, Item) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("create derivative cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// GetOrCompute 命中时直接返回缓存（并刷新其最近使用时间）；未命中时同一 key
// 只会有一个 compute 在执行，所有并发调用方拿到同一结果。compute 失败时错误
// 原样返回且不会写入缓存。ctx 取消只会让当前调用方停止等待。
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (Result, error) {
	if item, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return Result{Item: item, Hit: true}, nil
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (v interface{}, err error) {
		// 等待分组期间可能已有其他计算完成。
		if item, ok := c.entries.Get(key); ok {
			return item, nil
		}

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("derivative compute panicked: %v", r)
				c.failures.Add(1)
			}
		}()

		c.computes.Add(1)
		item, err := compute(detached)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.entries.Add(key, item)
		return item, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return Result{Item: res.Val.(Item), Shared: res.Shared}, nil
	}
}

// Contains 判断 key 是否在缓存中，不影响 LRU 顺序。
func (c *Cache) Contains(key Key) bool {
	return c.entries.Contains(key)
}

// Len 返回当前条目数。
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Capacity 返回最大条目数。
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats 返回计数器快照。
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.entries.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Failures:  c.failures.Load(),
		Computes:  c.computes.Load(),
	}
}
