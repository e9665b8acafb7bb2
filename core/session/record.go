package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Record is the per-session state object: an opaque identifier, a key/value
// payload, expiry timestamps, and lifecycle flags. All mutation goes through
// the record's own mutex, so concurrent requests touching the same session
// identifier are serialized while unrelated sessions never contend.
type Record struct {
	mu sync.Mutex

	id   string
	data map[string]json.RawMessage

	// expires is the backend validity deadline; autoRemove is the in-memory
	// residency deadline, refreshed on every service.
	expires    time.Time
	autoRemove time.Time

	destroy  bool
	longterm bool
	storable bool
	renew    bool
}

func newRecord(id string, expires, autoRemove time.Time) *Record {
	return &Record{
		id:         id,
		data:       make(map[string]json.RawMessage),
		expires:    expires,
		autoRemove: autoRemove,
		storable:   true,
	}
}

// ID returns the session identifier. Immutable after creation.
func (r *Record) ID() string {
	return r.id
}

// ExpiresAt returns the backend validity deadline.
func (r *Record) ExpiresAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expires
}

// Destroyed reports whether the record is marked for reset on next service.
func (r *Record) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroy
}

// Renewed reports whether the record is marked for identifier rotation.
func (r *Record) Renewed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renew
}

// Longterm reports whether the record uses the extended validity window.
func (r *Record) Longterm() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.longterm
}

// Storable reports whether the record may be written to the persistence backend.
func (r *Record) Storable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storable
}

// Keys returns the current data keys in unspecified order.
func (r *Record) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	return keys
}

// Valid reports whether the record is still valid (not past its backend
// expiry) at the given instant.
func (r *Record) Valid(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expires.After(now)
}

// service prepares the record for a new request cycle: expired or destroyed
// records are cleared and their flags reset, and the in-memory residency
// window slides to now + memoryLifespan so an actively used session is never
// evicted mid-use.
func (r *Record) service(now time.Time, memoryLifespan time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.expires.After(now) || r.destroy {
		r.destroy = false
		r.longterm = false
		clear(r.data)
	}
	r.autoRemove = now.Add(memoryLifespan)
}

// expiredFromMemory reports whether the in-memory residency window has passed.
func (r *Record) expiredFromMemory(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.After(r.autoRemove)
}

// markRenew flags the record for identifier rotation without discarding data.
func (r *Record) markRenew() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renew = true
}

// markDestroy flags the record for reset. Clearing happens lazily on the next
// service so a destroy-then-read within one cycle observes a consistent view.
func (r *Record) markDestroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroy = true
}

func (r *Record) setLongterm(longterm bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.longterm = longterm
}

func (r *Record) setStorable(storable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storable = storable
}

// refreshExpiry slides the backend validity deadline forward, honoring the
// extended window for long-term records, and returns the new deadline.
func (r *Record) refreshExpiry(now time.Time, lifespan, longtermLifespan time.Duration) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.longterm {
		r.expires = now.Add(longtermLifespan)
	} else {
		r.expires = now.Add(lifespan)
	}
	return r.expires
}

func (r *Record) get(key string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[key]
	return raw, ok
}

// getRemove reads and deletes the key as one atomic unit.
func (r *Record) getRemove(key string) (json.RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.data[key]
	if ok {
		delete(r.data, key)
	}
	return raw, ok
}

func (r *Record) set(key string, raw json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = raw
}

func (r *Record) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
}

func (r *Record) clearData() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.data)
}

// recordPayload is the persisted shape of a record. The expiry also lives in a
// separate numeric column so backends can run range-based expiry deletes.
type recordPayload struct {
	ID       string                     `json:"id"`
	Data     map[string]json.RawMessage `json:"data"`
	Expires  int64                      `json:"expires"`
	Longterm bool                       `json:"longterm"`
}

// encode serializes the record for persistence and returns the payload along
// with the expiry as a unix timestamp.
func (r *Record) encode() (string, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := json.Marshal(recordPayload{
		ID:       r.id,
		Data:     r.data,
		Expires:  r.expires.Unix(),
		Longterm: r.longterm,
	})
	if err != nil {
		return "", 0, errors.Join(ErrEncode, err)
	}
	return string(b), r.expires.Unix(), nil
}

// decodeRecord reconstructs a record from its persisted payload. The restored
// record starts a fresh in-memory residency window.
func decodeRecord(payload string, now time.Time, memoryLifespan time.Duration) (*Record, error) {
	var p recordPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	rec := newRecord(p.ID, time.Unix(p.Expires, 0), now.Add(memoryLifespan))
	if p.Data != nil {
		rec.data = p.Data
	}
	rec.longterm = p.Longterm
	return rec, nil
}
