package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sessionkit/identity-service/pkg/helpers"
)

const sessionContextKey = "session"

// SessionOptions is the complete cookie/store binding policy. It is built once
// at startup from configuration; every field is required there, so a zero
// value never reaches this middleware in a running process.
type SessionOptions struct {
	// Secret signs the session cookie. Rotating it invalidates every
	// outstanding session.
	Secret string
	// CookieName is deliberately non-default to reduce fingerprinting.
	CookieName string
	// Resave rewrites the record on every request, refreshing its TTL.
	Resave bool
	// SaveUninitialized controls whether untouched sessions are persisted.
	// Off, anonymous traffic never reaches the store.
	SaveUninitialized bool
	Domain            string
	MaxAge            time.Duration
	HTTPOnly          bool
	Secure            bool
	SameSite          http.SameSite
	// KeyPrefix namespaces session keys within the shared store.
	KeyPrefix string
}

// SessionStore persists session state keyed by prefixed session id.
type SessionStore interface {
	Load(ctx context.Context, key string, dest *map[string]any) (bool, error)
	Save(ctx context.Context, key string, values map[string]any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisSessionStore keeps sessions in the shared Redis so they survive
// restarts and are visible to every instance.
type RedisSessionStore struct {
	Client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{Client: client}
}

func (s *RedisSessionStore) Load(ctx context.Context, key string, dest *map[string]any) (bool, error) {
	return helpers.RedisGetJSON(ctx, s.Client, key, dest)
}

func (s *RedisSessionStore) Save(ctx context.Context, key string, values map[string]any, ttl time.Duration) error {
	return helpers.RedisSetJSON(ctx, s.Client, key, values, ttl)
}

func (s *RedisSessionStore) Delete(ctx context.Context, key string) error {
	return helpers.RedisDel(ctx, s.Client, key)
}

// Session is the per-request view of the session record. Writes mark it dirty;
// the middleware persists it once the response starts.
type Session struct {
	id        string
	values    map[string]any
	fresh     bool // not yet persisted to the store
	dirty     bool
	destroyed bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) GetString(key string) string {
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return ""
}

func (s *Session) Set(key string, value any) {
	s.values[key] = value
	s.dirty = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Destroy removes the record from the store and expires the cookie at the end
// of the request.
func (s *Session) Destroy() {
	s.values = map[string]any{}
	s.destroyed = true
}

// needsSave reports whether the record must be written to the store.
func (s *Session) needsSave(opts SessionOptions) bool {
	if s.destroyed {
		return false
	}
	if s.fresh && !s.dirty && !opts.SaveUninitialized {
		return false
	}
	return s.dirty || opts.Resave || s.fresh
}

// SessionFrom returns the request's session. It is only valid on routes behind
// the Sessions middleware.
func SessionFrom(c *gin.Context) *Session {
	if v, ok := c.Get(sessionContextKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	return nil
}

// sessionWriter injects the session cookie right before the first header or
// body byte goes out; after that point Set-Cookie would be silently dropped.
type sessionWriter struct {
	gin.ResponseWriter
	emit    func()
	emitted bool
}

func (w *sessionWriter) emitOnce() {
	if !w.emitted {
		w.emitted = true
		w.emit()
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	w.emitOnce()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.emitOnce()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.emitOnce()
	return w.ResponseWriter.WriteString(s)
}

// Sessions binds every request to a session record in the shared store and
// carries only the signed session id in the cookie. A missing, unsigned or
// tampered cookie yields a fresh session rather than an error.
func Sessions(opts SessionOptions, store SessionStore, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess := &Session{values: map[string]any{}, fresh: true}

		if raw, err := c.Cookie(opts.CookieName); err == nil && raw != "" {
			if sid, ok := helpers.VerifyValue(opts.Secret, raw); ok {
				found, err := store.Load(ctx, opts.KeyPrefix+sid, &sess.values)
				if err != nil && logger != nil {
					logger.WithError(err).Warn("session load failed")
				}
				if found {
					sess.id = sid
					sess.fresh = false
				}
				if sess.values == nil {
					sess.values = map[string]any{}
				}
			}
		}

		c.Set(sessionContextKey, sess)

		w := &sessionWriter{ResponseWriter: c.Writer}
		w.emit = func() {
			header := w.ResponseWriter.Header()
			if sess.destroyed {
				http.SetCookie(headerWriter{header}, opts.cookie("", -1))
				return
			}
			if !sess.needsSave(opts) {
				return
			}
			if sess.id == "" {
				sess.id = uuid.NewString()
			}
			signed := helpers.SignValue(opts.Secret, sess.id)
			http.SetCookie(headerWriter{header}, opts.cookie(signed, int(opts.MaxAge.Seconds())))
		}
		c.Writer = w

		c.Next()

		// gin only flushes headers lazily; make sure the cookie decision ran
		// even for handlers that wrote nothing.
		w.emitOnce()

		if sess.destroyed {
			if sess.id != "" {
				if err := store.Delete(ctx, opts.KeyPrefix+sess.id); err != nil && logger != nil {
					logger.WithError(err).Warn("session destroy failed")
				}
			}
			return
		}
		if !sess.needsSave(opts) {
			return
		}
		if err := store.Save(ctx, opts.KeyPrefix+sess.id, sess.values, opts.MaxAge); err != nil && logger != nil {
			logger.WithError(err).Warn("session save failed")
		}
	}
}

func (opts SessionOptions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     opts.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   maxAge,
		HttpOnly: opts.HTTPOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	}
}

// headerWriter adapts an http.Header to the ResponseWriter shape SetCookie needs.
type headerWriter struct {
	h http.Header
}

func (hw headerWriter) Header() http.Header       { return hw.h }
func (hw headerWriter) Write([]byte) (int, error) { return 0, nil }
func (hw headerWriter) WriteHeader(int)           {}
