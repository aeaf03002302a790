package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/feedauth-go/internal/core/domain"
	"github.com/yndnr/feedauth-go/pkg/crypto/adaptive"
)

// Session keys, stored under the origin namespace.
const (
	KeyToken      = "token"
	KeyUserID     = "userId"
	KeyExpiryDate = "expiryDate"
)

// ExpiryLayout is the on-disk format of expiryDate: ISO-8601 in UTC with
// millisecond precision.
const ExpiryLayout = "2006-01-02T15:04:05.000Z07:00"

// keyNamespace is the prefix shared by every session key.
const keyNamespace = "feedauth/session/"

// SessionStore persists the session triple for one origin.
//
// The three keys are always written and removed together in a single KV
// batch, and read back from a single consistent view.
type SessionStore struct {
	kv     KVEngine
	origin string
	prefix string
	sealer *adaptive.Sealer
	logger *slog.Logger
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSealer encrypts the token at rest.
func WithSealer(s *adaptive.Sealer) SessionStoreOption {
	return func(st *SessionStore) {
		st.sealer = s
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) SessionStoreOption {
	return func(st *SessionStore) {
		if l != nil {
			st.logger = l
		}
	}
}

// NewSessionStore creates a store scoped to the origin of baseURL.
func NewSessionStore(kv KVEngine, baseURL string, opts ...SessionStoreOption) (*SessionStore, error) {
	if kv == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("kv engine is required")
	}
	origin, err := Origin(baseURL)
	if err != nil {
		return nil, err
	}

	st := &SessionStore{
		kv:     kv,
		origin: origin,
		prefix: keyNamespace + origin + "/",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st, nil
}

// Origin reduces a URL to scheme://host[:port], lower-cased.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", domain.ErrInvalidArgument.WithDetails("invalid server url").WithCause(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("server url %q must include scheme and host", rawURL))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), nil
}

// Origin returns the origin this store is scoped to.
func (s *SessionStore) Origin() string {
	return s.origin
}

func (s *SessionStore) key(name string) []byte {
	return []byte(s.prefix + name)
}

func (s *SessionStore) aad() []byte {
	return []byte(s.origin)
}

// Load reads the stored session.
//
// Returns (nil, nil) when nothing is stored. A triple that is only partly
// present, or that cannot be decoded, yields ErrPartialSession; callers are
// expected to Clear it.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	values, err := s.kv.GetMulti(ctx, [][]byte{
		s.key(KeyToken),
		s.key(KeyUserID),
		s.key(KeyExpiryDate),
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("load session").WithCause(err)
	}

	token, userID, expiry := values[0], values[1], values[2]
	if token == nil && userID == nil && expiry == nil {
		return nil, nil
	}
	if token == nil || expiry == nil {
		return nil, domain.ErrPartialSession.WithDetails("token and expiryDate must both be stored")
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, string(expiry))
	if err != nil {
		return nil, domain.ErrPartialSession.WithDetails("unreadable expiryDate").WithCause(err)
	}

	tok := string(token)
	if s.sealer != nil {
		if !adaptive.IsSealed(tok) {
			return nil, domain.ErrPartialSession.WithDetails("token stored without encryption")
		}
		if tok, err = s.sealer.OpenString(tok, s.aad()); err != nil {
			return nil, domain.ErrPartialSession.WithDetails("token cannot be decrypted").WithCause(err)
		}
	}

	sess := &domain.Session{
		Token:     tok,
		UserID:    string(userID),
		ExpiresAt: expiresAt,
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save writes the whole triple in one batch.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess.IsZero() || sess.Token == "" || sess.ExpiresAt.IsZero() {
		return domain.ErrInvalidArgument.WithDetails("session must carry token and expiry")
	}

	tok := sess.Token
	if s.sealer != nil {
		sealed, err := s.sealer.SealString(tok, s.aad())
		if err != nil {
			return domain.ErrStorageError.WithDetails("seal token").WithCause(err)
		}
		tok = sealed
	}

	err := s.kv.Batch(ctx, []Mutation{
		SetOp(s.key(KeyToken), []byte(tok)),
		SetOp(s.key(KeyUserID), []byte(sess.UserID)),
		SetOp(s.key(KeyExpiryDate), []byte(sess.ExpiresAt.UTC().Format(ExpiryLayout))),
	})
	if err != nil {
		return domain.ErrStorageError.WithDetails("save session").WithCause(err)
	}

	s.logger.Debug("session persisted",
		"origin", s.origin,
		"user_id", sess.UserID,
		"expires_at", sess.ExpiresAt.UTC().Format(ExpiryLayout))
	return nil
}

// Clear removes the whole triple in one batch. Clearing an empty store is
// not an error.
func (s *SessionStore) Clear(ctx context.Context) error {
	err := s.kv.Batch(ctx, []Mutation{
		DeleteOp(s.key(KeyToken)),
		DeleteOp(s.key(KeyUserID)),
		DeleteOp(s.key(KeyExpiryDate)),
	})
	if err != nil {
		return domain.ErrStorageError.WithDetails("clear session").WithCause(err)
	}
	s.logger.Debug("session cleared", "origin", s.origin)
	return nil
}

// Origins lists every origin that currently has session keys.
func Origins(ctx context.Context, kv KVEngine) ([]string, error) {
	seen := make(map[string]struct{})
	var origins []string
	err := kv.Scan(ctx, []byte(keyNamespace), func(key, _ []byte) bool {
		rest := strings.TrimPrefix(string(key), keyNamespace)
		i := strings.LastIndex(rest, "/")
		if i <= 0 {
			return true
		}
		o := rest[:i]
		if _, ok := seen[o]; !ok {
			seen[o] = struct{}{}
			origins = append(origins, o)
		}
		return true
	})
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("scan sessions").WithCause(err)
	}
	return origins, nil
}
