package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Store is the session cache façade: a process-local concurrent cache of
// session records, an optional persistence backend, and the lazy sweep
// bookkeeping that bounds memory growth. It is the only type the hosting
// layer talks to.
//
// A missing identifier on any lifecycle or data operation is a benign race
// with an eviction sweep, not a failure: such calls log a warning and no-op.
type Store struct {
	db     Database
	cache  *cache
	cfg    Config
	timers *sweepTimers
	log    *slog.Logger
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Store)

// WithLogger sets the logger used for missing-identifier diagnostics.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithConfig replaces the store configuration wholesale, e.g. one parsed from
// the environment.
func WithConfig(cfg Config) StoreOption {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithOptions applies individual Config options on top of the current
// configuration.
func WithOptions(opts ...Option) StoreOption {
	return func(s *Store) {
		for _, opt := range opts {
			opt(&s.cfg)
		}
	}
}

// New creates a session store. A nil database (or NullDatabase) puts the store
// in purely in-memory mode; sessions then live only until eviction or process
// exit.
func New(db Database, opts ...StoreOption) *Store {
	s := &Store{
		db:    db,
		cache: newCache(),
		cfg:   DefaultConfig(),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timers = newSweepTimers(time.Now(), s.cfg.MemorySweepInterval, s.cfg.DatabaseSweepInterval)
	return s
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.cfg
}

// IsPersistent reports whether a real persistence backend is configured.
func (s *Store) IsPersistent() bool {
	switch s.db.(type) {
	case nil, NullDatabase, *NullDatabase:
		return false
	default:
		return true
	}
}

// Initiate idempotently creates the backend schema. No-op without a backend.
func (s *Store) Initiate(ctx context.Context) error {
	if !s.IsPersistent() {
		return nil
	}
	return s.db.Initiate(ctx, s.cfg.TableName)
}

// Cleanup deletes all backend records whose expiry has passed. No-op without a
// backend.
func (s *Store) Cleanup(ctx context.Context) error {
	if !s.IsPersistent() {
		return nil
	}
	return s.db.DeleteByExpiry(ctx, s.cfg.TableName)
}

// Count returns the backend record count when persistent, otherwise the number
// of records resident in memory.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if !s.IsPersistent() {
		return int64(s.cache.len()), nil
	}
	return s.db.Count(ctx, s.cfg.TableName)
}

// CountSessions is the never-failing variant of Count for observability
// callers: backend errors degrade to zero.
func (s *Store) CountSessions(ctx context.Context) int64 {
	if !s.IsPersistent() {
		return int64(s.cache.len())
	}
	n, err := s.db.Count(ctx, s.cfg.TableName)
	if err != nil {
		s.log.WarnContext(ctx, "session count failed", slog.Any("error", err))
		return 0
	}
	return n
}

// LoadSession fetches a session from the backend. Returns nil without error
// when the session is absent or no backend is configured. The loaded record is
// not inserted into the cache; that decision belongs to the caller.
func (s *Store) LoadSession(ctx context.Context, id string) (*Record, error) {
	if !s.IsPersistent() {
		return nil, nil
	}
	payload, ok, err := s.db.Load(ctx, id, s.cfg.TableName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return decodeRecord(payload, time.Now(), s.cfg.MemoryLifespan)
}

// StoreSession writes the resident session to the backend, sliding its expiry
// forward first. Sessions flagged non-storable are never written, regardless
// of backend configuration. No-op without a backend or when the identifier is
// not resident.
func (s *Store) StoreSession(ctx context.Context, id string) error {
	rec, ok := s.cache.get(id)
	if !ok {
		s.warnMissing(ctx, "store", id)
		return nil
	}
	if !rec.Storable() || !s.IsPersistent() {
		return nil
	}
	rec.refreshExpiry(time.Now(), s.cfg.Lifespan, s.cfg.LongtermLifespan)
	payload, expires, err := rec.encode()
	if err != nil {
		return err
	}
	return s.db.Store(ctx, id, payload, expires, s.cfg.TableName)
}

// DestroySession deletes the session from the backend. The resident record, if
// any, is untouched; use Destroy or Evict for the in-memory side.
func (s *Store) DestroySession(ctx context.Context, id string) error {
	if !s.IsPersistent() {
		return nil
	}
	return s.db.DeleteOneByID(ctx, id, s.cfg.TableName)
}

// ClearAll deletes every session from the backend. No-op without a backend.
func (s *Store) ClearAll(ctx context.Context) error {
	if !s.IsPersistent() {
		return nil
	}
	return s.db.DeleteAll(ctx, s.cfg.TableName)
}

// ClearMemory drops the entire in-memory cache. The backend is untouched.
func (s *Store) ClearMemory() {
	s.cache.clear()
}

// NewRecord creates a fresh record for id with expiry windows derived from the
// store configuration. The record is not inserted; pair with Insert.
func (s *Store) NewRecord(id string) *Record {
	now := time.Now()
	return newRecord(id, now.Add(s.cfg.Lifespan), now.Add(s.cfg.MemoryLifespan))
}

// Insert makes a record resident, replacing any existing record for the same
// identifier.
func (s *Store) Insert(rec *Record) {
	s.cache.insert(rec)
}

// Lookup returns the resident record for id. Absence is a valid outcome.
func (s *Store) Lookup(id string) (*Record, bool) {
	return s.cache.get(id)
}

// Resident reports whether id is currently resident in memory.
func (s *Store) Resident(id string) bool {
	_, ok := s.cache.get(id)
	return ok
}

// Evict removes the record for id from memory unconditionally and reports
// whether one existed.
func (s *Store) Evict(id string) bool {
	return s.cache.remove(id)
}

// Service prepares the resident session for a request cycle: expired or
// destroyed records are cleared and reset, and the in-memory residency window
// slides forward. Returns false when the identifier is not resident, which is
// the expected outcome for a session never materialized in this process.
func (s *Store) Service(id string) bool {
	rec, ok := s.cache.get(id)
	if !ok {
		return false
	}
	rec.service(time.Now(), s.cfg.MemoryLifespan)
	return true
}

// Rotate moves the session state from oldID to a fresh record under newID,
// clearing the renew flag. Used by the transport layer when a session asked
// for identifier rotation. Reports whether oldID was resident.
func (s *Store) Rotate(oldID, newID string) bool {
	rec, ok := s.cache.get(oldID)
	if !ok {
		s.warnMissing(context.Background(), "rotate", oldID)
		return false
	}

	fresh := s.NewRecord(newID)
	rec.mu.Lock()
	// Move the data map rather than share it: stragglers still holding the old
	// record mutate an orphan instead of racing the new one.
	fresh.data = rec.data
	rec.data = make(map[string]json.RawMessage)
	fresh.expires = rec.expires
	fresh.longterm = rec.longterm
	fresh.storable = rec.storable
	rec.mu.Unlock()

	s.cache.remove(oldID)
	s.cache.insert(fresh)
	return true
}

// Renew marks the session for identifier rotation without discarding data.
func (s *Store) Renew(id string) {
	if rec, ok := s.cache.get(id); ok {
		rec.markRenew()
		return
	}
	s.warnMissing(context.Background(), "renew", id)
}

// Destroy marks the session for reset. Data is cleared lazily on the next
// Service, so reads within the same cycle observe a consistent destroyed view.
func (s *Store) Destroy(id string) {
	if rec, ok := s.cache.get(id); ok {
		rec.markDestroy()
		return
	}
	s.warnMissing(context.Background(), "destroy", id)
}

// SetLongterm toggles the extended validity window for the session.
func (s *Store) SetLongterm(id string, longterm bool) {
	if rec, ok := s.cache.get(id); ok {
		rec.setLongterm(longterm)
		return
	}
	s.warnMissing(context.Background(), "set longterm", id)
}

// SetStorable toggles whether the session may be written to the backend.
func (s *Store) SetStorable(id string, storable bool) {
	if rec, ok := s.cache.get(id); ok {
		rec.setStorable(storable)
		return
	}
	s.warnMissing(context.Background(), "set storable", id)
}

// Set stores a value under key in the session's data. Values that cannot be
// serialized are dropped with a warning; session data is advisory cache
// content, not a durability contract.
func (s *Store) Set(id, key string, value any) {
	rec, ok := s.cache.get(id)
	if !ok {
		s.warnMissing(context.Background(), "set", id)
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("session value not serializable",
			slog.String("key", key), slog.Any("error", errors.Join(ErrEncode, err)))
		return
	}
	rec.set(key, raw)
}

// RemoveKey deletes key from the session's data.
func (s *Store) RemoveKey(id, key string) {
	if rec, ok := s.cache.get(id); ok {
		rec.remove(key)
		return
	}
	s.warnMissing(context.Background(), "remove", id)
}

// ClearSessionData removes all keys from the session's data, leaving flags and
// expiry untouched.
func (s *Store) ClearSessionData(id string) {
	if rec, ok := s.cache.get(id); ok {
		rec.clearData()
		return
	}
	s.warnMissing(context.Background(), "clear", id)
}

// SweepIfDue runs whichever expiry sweeps have become due: the in-memory scan
// keyed on residency windows, and the backend range delete keyed on expiry.
// Sweeps are traffic-coupled; a host wanting time-coupled sweeps can call this
// from its own ticker.
func (s *Store) SweepIfDue(ctx context.Context) error {
	now := time.Now()
	if s.timers.dueMemory(now, s.cfg.MemorySweepInterval) {
		s.cache.sweepExpired(now)
	}
	if s.IsPersistent() && s.timers.dueDatabase(now, s.cfg.DatabaseSweepInterval) {
		if err := s.db.DeleteByExpiry(ctx, s.cfg.TableName); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) warnMissing(ctx context.Context, op, id string) {
	s.log.WarnContext(ctx, "session data unexpectedly missing",
		slog.String("op", op), slog.String("session_id", id))
}

// Get returns the value stored under key, decoded as V. A value that fails to
// decode into V is treated as absent to tolerate schema drift across
// deployments.
func Get[V any](s *Store, id, key string) (V, bool) {
	var zero V
	rec, ok := s.cache.get(id)
	if !ok {
		s.warnMissing(context.Background(), "get", id)
		return zero, false
	}
	raw, ok := rec.get(key)
	if !ok {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// GetRemove atomically reads and deletes the value under key, decoded as V.
// No concurrent write to the same key can interleave between the read and the
// delete. Decode failures are treated as absent; the key is deleted either way.
func GetRemove[V any](s *Store, id, key string) (V, bool) {
	var zero V
	rec, ok := s.cache.get(id)
	if !ok {
		s.warnMissing(context.Background(), "get_remove", id)
		return zero, false
	}
	raw, ok := rec.getRemove(key)
	if !ok {
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}
