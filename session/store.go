package session

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/kv"
)

const (
	defaultPrefix = "ws"
	defaultTTL    = 24 * time.Hour
)

// Config configures a [Store].
type Config struct {
	// Prefix namespaces primary keys ("<prefix>:<id>") and address index sets
	// ("<prefix>a:<address>"). Default "ws".
	Prefix string
	// TTL is applied on every create and update. Default 24h.
	TTL time.Duration
	// MaxMetadataBytes caps encoded metadata. Default [DefaultMaxMetadataBytes].
	MaxMetadataBytes int
	// Logger receives degraded-path diagnostics. Default slog.Default().
	Logger *slog.Logger
}

// Store persists sessions and their address index on a [kv.Backend].
//
// Store holds no locks across backend calls. Concurrent writers to the same
// id race at last-write-wins granularity.
type Store struct {
	backend     kv.Backend
	prefix      string
	ttl         time.Duration
	maxMetadata int
	logger      *slog.Logger
}

// NewStore creates a session [Store] on backend.
func NewStore(backend kv.Backend, cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxMetadataBytes <= 0 {
		cfg.MaxMetadataBytes = DefaultMaxMetadataBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Store{
		backend:     backend,
		prefix:      cfg.Prefix,
		ttl:         cfg.TTL,
		maxMetadata: cfg.MaxMetadataBytes,
		logger:      cfg.Logger,
	}
}

// TTL returns the expiry applied on create and update.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// NormalizeAddress case-folds a wallet address so index lookups are
// deterministic regardless of client casing.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) addressKey(address string) string {
	return s.prefix + "a:" + NormalizeAddress(address)
}

func (s *Store) sessionPattern() string {
	return s.prefix + ":*"
}

func (s *Store) addressPattern() string {
	return s.prefix + "a:*"
}

func (s *Store) idFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, s.prefix+":")
	return id, ok && id != ""
}

// Create writes the record with the standard TTL, then adds its id to the
// address index and refreshes the index TTL. sess.Address is normalized in
// place.
//
// A primary write failure returns [kv.ErrBackendUnavailable]. An index
// failure after the primary succeeded returns an error matching
// [ErrIndexDegraded]: the record is readable by id but not discoverable by
// address until the next reconciliation sweep.
//
//	Performance: 3 backend calls (SET + SADD + PEXPIRE).
func (s *Store) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || strings.TrimSpace(sess.Address) == "" {
		return ErrInvalidSession
	}
	sess.Address = NormalizeAddress(sess.Address)

	data, err := encodeWithLimit(sess, s.maxMetadata)
	if err != nil {
		return err
	}

	if err := s.backend.SetWithExpiry(ctx, s.key(sess.ID), data, s.ttl); err != nil {
		return err
	}

	indexKey := s.addressKey(sess.Address)
	if _, err := s.backend.AddToSet(ctx, indexKey, sess.ID); err != nil {
		s.logger.Warn("session index add failed; record left for reconciliation",
			"session_id", sess.ID, "error", err)
		return errors.Join(ErrIndexDegraded, err)
	}
	if _, err := s.backend.Expire(ctx, indexKey, s.ttl); err != nil {
		s.logger.Warn("session index expiry failed; record left for reconciliation",
			"session_id", sess.ID, "error", err)
		return errors.Join(ErrIndexDegraded, err)
	}

	return nil
}

// Get reads and decodes the primary record only. Absent or expired records
// return [ErrNotFound]; corrupt records return an error matching both
// [ErrNotFound] and [ErrDecode].
//
//	Performance: 1 backend GET.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}

	data, found, err := s.backend.Get(ctx, s.key(sessionID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	sess, err := Decode(data)
	if err == nil && sess.ID != sessionID {
		err = &DecodeError{Field: "id", Err: errors.New("id does not match key")}
	}
	if err != nil {
		s.logger.Error("session record corrupt", "session_id", sessionID, "error", err)
		return nil, errors.Join(ErrNotFound, err)
	}

	return sess, nil
}

// Update overwrites the whole record and restarts its TTL from now. The
// address index is not touched; address never changes after creation.
//
// The write only lands if the record still exists, so an update racing a
// delete or expiry returns [ErrNotFound] instead of resurrecting the session.
//
//	Performance: 1 backend SET XX.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" || strings.TrimSpace(sess.Address) == "" {
		return ErrInvalidSession
	}
	sess.Address = NormalizeAddress(sess.Address)

	data, err := encodeWithLimit(sess, s.maxMetadata)
	if err != nil {
		return err
	}

	replaced, err := s.backend.Replace(ctx, s.key(sess.ID), data, s.ttl)
	if err != nil {
		return err
	}
	if !replaced {
		return ErrNotFound
	}
	return nil
}

// Delete removes the record and its index entry. Deleting an absent id is a
// no-op. A corrupt record is deleted and its index entry is left for the
// reconciliation sweep.
//
//	Performance: 3 backend calls (GET + DEL + SREM).
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	key := s.key(sessionID)

	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	sess, decErr := Decode(data)

	if _, err := s.backend.Delete(ctx, key); err != nil {
		return err
	}

	if decErr != nil {
		s.logger.Error("deleted corrupt session record; index entry left for reconciliation",
			"session_id", sessionID, "error", decErr)
		return nil
	}

	if _, err := s.backend.RemoveFromSet(ctx, s.addressKey(sess.Address), sessionID); err != nil {
		return err
	}

	return nil
}

// ListByAddress resolves every id in the address index. Ids whose record is
// gone are dropped from the result but not removed from the index; the
// reconciliation sweep does that.
//
//	Performance: 1 SMEMBERS + 1 GET per member.
func (s *Store) ListByAddress(ctx context.Context, address string) ([]*Session, error) {
	address = NormalizeAddress(address)
	if address == "" {
		return []*Session{}, nil
	}

	ids, err := s.backend.MembersOfSet(ctx, s.addressKey(address))
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.resolve(ctx, id)
		if !ok {
			continue
		}
		if NormalizeAddress(sess.Address) != address {
			s.logger.Debug("index member belongs to another address",
				"session_id", id, "address", address)
			continue
		}
		out = append(out, sess)
	}

	sortSessions(out)
	return out, nil
}

// ListAll enumerates every stored session by key scan. This is an admin and
// analytics path and must not be used on a request hot path.
func (s *Store) ListAll(ctx context.Context) ([]*Session, error) {
	keys, err := s.backend.KeysMatching(ctx, s.sessionPattern())
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := s.idFromKey(key)
		if !ok {
			continue
		}
		if sess, ok := s.resolve(ctx, id); ok {
			out = append(out, sess)
		}
	}

	sortSessions(out)
	return out, nil
}

// resolve is Get for enumeration paths: misses and failures are logged and
// reported as absent.
func (s *Store) resolve(ctx context.Context, id string) (*Session, bool) {
	sess, err := s.Get(ctx, id)
	switch {
	case err == nil:
		return sess, true
	case errors.Is(err, ErrNotFound):
		s.logger.Debug("dropping stale session id", "session_id", id)
	default:
		s.logger.Warn("session lookup failed", "session_id", id, "error", err)
	}
	return nil, false
}

func sortSessions(list []*Session) {
	slices.SortFunc(list, func(a, b *Session) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
