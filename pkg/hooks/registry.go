package hooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
)

// ErrSealed is returned by Register once the registry has been sealed
var ErrSealed = errors.New("hook registry is sealed")

// Phase says whether a hook runs before or after the provider handles the request
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	return p == PhaseBefore || p == PhaseAfter
}

const maxBodyBytes = 1 << 20

// Context is what a hook sees of one request
type Context struct {
	Request *http.Request
	Auth    *auth.AuthContext
	// Header is the response header; after hooks may change it
	Header http.Header
	// Status is the response status; zero in before hooks
	Status int

	body     []byte
	bodyRead bool
}

// Body returns the request body and leaves it readable for the next handler
func (c *Context) Body() ([]byte, error) {
	if c.bodyRead {
		return c.body, nil
	}
	c.bodyRead = true
	if c.Request.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	c.Request.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	c.body = body
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Request.ContentLength = int64(len(body))
	return body, nil
}

// DecodeJSON decodes the request body into v without consuming it
func (c *Context) DecodeJSON(v interface{}) error {
	body, err := c.Body()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Reject(http.StatusBadRequest, "invalid JSON")
	}
	return nil
}

// Handler is a hook callback. A before hook rejects the request by returning
// an error; an *Error chooses the status, anything else is a 400.
type Handler func(hc *Context) error

// Error is a rejection with an HTTP status
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Reject builds a rejection
func Reject(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Registry holds ordered hook lists per path and phase. Hooks are registered
// during startup; Seal freezes the registry before it starts serving.
type Registry struct {
	mu      sync.RWMutex
	sealed  bool
	hooks   map[Phase]map[string][]Handler
	metrics *observability.Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *observability.Metrics) *Registry {
	return &Registry{
		hooks: map[Phase]map[string][]Handler{
			PhaseBefore: {},
			PhaseAfter:  {},
		},
		metrics: metrics,
	}
}

// Register appends handler to the list for (path, phase). Handlers run in
// registration order and only for requests whose path equals path exactly.
func (reg *Registry) Register(path string, phase Phase, handler Handler) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("hook path must start with /: %q", path)
	}
	if !phase.Valid() {
		return fmt.Errorf("invalid hook phase: %q", phase)
	}
	if handler == nil {
		return fmt.Errorf("cannot register nil hook for %s", path)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.sealed {
		return ErrSealed
	}
	reg.hooks[phase][path] = append(reg.hooks[phase][path], handler)
	return nil
}

// Seal rejects further registrations
func (reg *Registry) Seal() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.sealed = true
}

// Sealed reports whether Seal has been called
func (reg *Registry) Sealed() bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.sealed
}

// Handlers returns a copy of the list for (path, phase)
func (reg *Registry) Handlers(path string, phase Phase) []Handler {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	list := reg.hooks[phase][path]
	out := make([]Handler, len(list))
	copy(out, list)
	return out
}

// Wrap runs the registered hooks around next
func (reg *Registry) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		before := reg.Handlers(path, PhaseBefore)
		after := reg.Handlers(path, PhaseAfter)
		if len(before) == 0 && len(after) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		hc := &Context{
			Request: r,
			Auth:    middleware.GetAuthContext(r),
			Header:  w.Header(),
		}

		for _, h := range before {
			if err := reg.run(hc, path, PhaseBefore, h); err != nil {
				writeRejection(w, err)
				return
			}
		}

		if len(after) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		// the provider drains the request body, so buffer it for the after hooks
		if _, err := hc.Body(); err != nil {
			observability.FromContext(r.Context()).WithError(err).WithField("path", path).Warn("failed to buffer request body")
		}

		hw := &hookWriter{ResponseWriter: w, fire: func(status int) {
			hc.Status = status
			for _, h := range after {
				if err := reg.run(hc, path, PhaseAfter, h); err != nil {
					observability.FromContext(r.Context()).WithError(err).WithField("path", path).Warn("after hook failed")
				}
			}
		}}
		next.ServeHTTP(hw, r)
		hw.finish()
	})
}

func (reg *Registry) run(hc *Context, path string, phase Phase, h Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panicked: %v", rec)
			observability.FromContext(hc.Request.Context()).WithFields(map[string]interface{}{
				"path":  path,
				"phase": string(phase),
				"panic": fmt.Sprint(rec),
			}).Error("hook panicked")
			reg.metrics.RecordHookInvocation(path, string(phase), "error")
		}
	}()

	err = h(hc)
	outcome := "ok"
	var rejection *Error
	switch {
	case err == nil:
	case errors.As(err, &rejection):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	reg.metrics.RecordHookInvocation(path, string(phase), outcome)
	return err
}

func writeRejection(w http.ResponseWriter, err error) {
	var rejection *Error
	if errors.As(err, &rejection) {
		status := rejection.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		httputil.WriteErrorMessage(w, status, rejection.Message)
		return
	}
	httputil.WriteErrorMessage(w, http.StatusBadRequest, err.Error())
}

// hookWriter runs the after hooks once, just before the status line is written
type hookWriter struct {
	http.ResponseWriter
	fire  func(status int)
	fired bool
}

func (hw *hookWriter) WriteHeader(code int) {
	// informational responses precede the real status
	if !hw.fired && code >= http.StatusOK {
		hw.fired = true
		hw.fire(code)
	}
	hw.ResponseWriter.WriteHeader(code)
}

func (hw *hookWriter) Write(b []byte) (int, error) {
	if !hw.fired {
		hw.WriteHeader(http.StatusOK)
	}
	return hw.ResponseWriter.Write(b)
}

// finish fires the hooks for handlers that wrote nothing
func (hw *hookWriter) finish() {
	if !hw.fired {
		hw.WriteHeader(http.StatusOK)
	}
}

// Unwrap lets http.ResponseController reach the underlying writer
func (hw *hookWriter) Unwrap() http.ResponseWriter {
	return hw.ResponseWriter
}

// Flush forwards streaming flushes from the proxy
func (hw *hookWriter) Flush() {
	if !hw.fired {
		hw.WriteHeader(http.StatusOK)
	}
	if f, ok := hw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
