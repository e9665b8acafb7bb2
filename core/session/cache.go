package session

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

// cache is a sharded concurrent map from session identifier to record.
// Shard locks guard only map structure; record state is guarded by each
// record's own mutex, so operations on unrelated identifiers never block
// each other and an expiry sweep never holds a global lock.
type cache struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func newCache() *cache {
	c := &cache{}
	for i := range c.shards {
		c.shards[i].records = make(map[string]*Record)
	}
	return c
}

func (c *cache) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &c.shards[h.Sum32()%shardCount]
}

// get returns the resident record for id, if any. Absence is a valid outcome,
// not an error.
func (c *cache) get(id string) (*Record, bool) {
	s := c.shardFor(id)
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	return rec, ok
}

// insert adds a record, replacing any existing one for the same identifier.
func (c *cache) insert(rec *Record) {
	s := c.shardFor(rec.ID())
	s.mu.Lock()
	s.records[rec.ID()] = rec
	s.mu.Unlock()
}

// remove evicts a record unconditionally and reports whether one existed.
func (c *cache) remove(id string) bool {
	s := c.shardFor(id)
	s.mu.Lock()
	_, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	return ok
}

func (c *cache) len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

func (c *cache) clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		clear(s.records)
		s.mu.Unlock()
	}
}

// sweepExpired removes records whose in-memory residency window has passed and
// returns how many were evicted. The scan takes one shard at a time: candidates
// are collected under a read lock, then re-checked under the write lock before
// deletion so a record serviced concurrently is not evicted mid-use.
func (c *cache) sweepExpired(now time.Time) int {
	evicted := 0
	for i := range c.shards {
		s := &c.shards[i]

		s.mu.RLock()
		var candidates []string
		for id, rec := range s.records {
			if rec.expiredFromMemory(now) {
				candidates = append(candidates, id)
			}
		}
		s.mu.RUnlock()

		if len(candidates) == 0 {
			continue
		}

		s.mu.Lock()
		for _, id := range candidates {
			if rec, ok := s.records[id]; ok && rec.expiredFromMemory(now) {
				delete(s.records, id)
				evicted++
			}
		}
		s.mu.Unlock()
	}
	return evicted
}
