package kv

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/sessions"
)

// Cookie names for the two scopes.
const (
	SessionCookie = "rinkside_session"
	LocalCookie   = "rinkside_local"
)

// localMaxAge keeps local-scope values for a year.
const localMaxAge = 365 * 24 * 60 * 60

const localDirPermission = 0o700

// DefaultLocalDir holds local-scope files when no directory is configured.
var DefaultLocalDir = filepath.Join(os.TempDir(), "rinkside-local")

// CookieStore opens per-request scopes signed with a shared key. The session
// scope lives entirely in its cookie. The local scope keeps only a signed ID
// in its cookie and the values in a file, so the student directory is not
// bound by the browser's cookie size limit.
type CookieStore struct {
	session *sessions.CookieStore
	local   *sessions.FilesystemStore
	dirErr  error
}

// Option configures a CookieStore.
type Option func(*cookieConfig)

type cookieConfig struct {
	localDir string
}

// WithLocalDir sets the directory holding local-scope files.
func WithLocalDir(dir string) Option {
	return func(c *cookieConfig) {
		if dir != "" {
			c.localDir = dir
		}
	}
}

// NewCookieStore builds both scopes. The session scope has no expiry so the
// browser drops it when it closes; the local scope lasts a year.
func NewCookieStore(key []byte, secure bool, opts ...Option) *CookieStore {
	cfg := cookieConfig{localDir: DefaultLocalDir}
	for _, opt := range opts {
		opt(&cfg)
	}

	session := sessions.NewCookieStore(key)
	session.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	session.MaxAge(0)

	local := sessions.NewFilesystemStore(cfg.localDir, key)
	local.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	local.MaxAge(localMaxAge)
	local.MaxLength(0)

	var dirErr error
	if err := os.MkdirAll(cfg.localDir, localDirPermission); err != nil {
		dirErr = fmt.Errorf("%w: %s: %w", ErrNoScope, LocalCookie, err)
	}
	return &CookieStore{session: session, local: local, dirErr: dirErr}
}

// Jar holds both scopes for one request. Save must be called before the
// response body is written for changes to reach the browser.
type Jar struct {
	session *sessions.Session
	local   *sessions.Session
}

// Open loads both scopes from r. Cookies that fail to decode (rotated key,
// tampering) are replaced by empty scopes rather than failing the request.
func (c *CookieStore) Open(r *http.Request) (*Jar, error) {
	if c.dirErr != nil {
		return nil, c.dirErr
	}
	session, err := c.session.Get(r, SessionCookie)
	if session == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoScope, SessionCookie, err)
	}
	local, err := c.local.Get(r, LocalCookie)
	if local == nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoScope, LocalCookie, err)
	}
	return &Jar{session: session, local: local}, nil
}

// Session returns the browser-session scope.
func (j *Jar) Session() Store { return sessionValues{j.session} }

// Local returns the long-lived scope.
func (j *Jar) Local() Store { return sessionValues{j.local} }

// Save writes both cookies to w.
func (j *Jar) Save(r *http.Request, w http.ResponseWriter) error {
	if err := j.session.Save(r, w); err != nil {
		return fmt.Errorf("save %s: %w", SessionCookie, err)
	}
	if err := j.local.Save(r, w); err != nil {
		return fmt.Errorf("save %s: %w", LocalCookie, err)
	}
	return nil
}

// sessionValues adapts a gorilla session to Store.
type sessionValues struct {
	s *sessions.Session
}

func (v sessionValues) Get(key string) (string, bool) {
	raw, ok := v.s.Values[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func (v sessionValues) Set(key, value string) { v.s.Values[key] = value }

func (v sessionValues) Delete(key string) { delete(v.s.Values, key) }
