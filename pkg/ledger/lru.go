package ledger

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

type lruItem struct {
	key   string
	entry Entry
}

// LRU keeps the most recently seen entries in memory in front of a shared
// backing ledger. Hits are answered locally; misses fall through to the
// backing store and are remembered when found. Records are written through.
type LRU struct {
	maxSize int
	backing Ledger

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

// NewLRU creates an LRU holding at most maxSize entries in front of backing.
func NewLRU(maxSize int, backing Ledger) (*LRU, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be greater than 0")
	}
	if backing == nil {
		return nil, fmt.Errorf("backing ledger cannot be nil")
	}
	return &LRU{
		maxSize: maxSize,
		backing: backing,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}, nil
}

func (c *LRU) Lookup(ctx context.Context, key string) (Entry, error) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*lruItem).entry, nil
	}
	c.mu.Unlock()

	entry, err := c.backing.Lookup(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	c.remember(key, entry)
	return entry, nil
}

func (c *LRU) Record(ctx context.Context, key string, entry Entry) error {
	if err := c.backing.Record(ctx, key, entry); err != nil {
		return err
	}
	c.remember(key, entry)
	return nil
}

// Close closes the backing ledger.
func (c *LRU) Close() error {
	return c.backing.Close()
}

func (c *LRU) remember(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruItem).entry = entry
		c.ll.MoveToFront(elem)
		return
	}
	c.items[key] = c.ll.PushFront(&lruItem{key: key, entry: entry})
	if c.ll.Len() > c.maxSize {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*lruItem).key)
	}
}
