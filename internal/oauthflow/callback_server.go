package oauthflow

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackPort is the default port for the loopback callback server.
const DefaultCallbackPort = 8765

// FlowTimeout bounds how long a callback is waited for. It matches the
// backend's server-side state lifetime: a callback after this window would
// be rejected on exchange anyway.
const FlowTimeout = 10 * time.Minute

//go:embed templates/callback_success.html
var callbackSuccessHTML string

//go:embed templates/callback_error.html
var callbackErrorHTML string

// Callback carries the query parameters of one provider return.
type Callback struct {
	Code             string
	State            string
	ErrorCode        string
	ErrorDescription string
}

// Denied reports whether the provider returned an error instead of a code.
func (c *Callback) Denied() bool {
	return c.ErrorCode != ""
}

// CallbackServer is a short-lived loopback HTTP server that receives the
// provider's redirect. It accepts exactly one callback and then shuts down;
// later deliveries get a rejection page and are otherwise ignored.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	results  chan *Callback
	failures chan error
	once     sync.Once
	baseURL  string
}

// NewCallbackServer creates a callback server. Port 0 selects the default.
func NewCallbackServer(port int) *CallbackServer {
	if port == 0 {
		port = DefaultCallbackPort
	}
	return &CallbackServer{
		port:     port,
		results:  make(chan *Callback, 1),
		failures: make(chan error, 1),
	}
}

// Start binds the loopback listener and begins serving. It returns the
// redirect URI to hand to the provider. The server stops when the context is
// cancelled or after the first callback.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to bind callback listener on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handle)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.failures <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.RedirectURI(), nil
}

// Wait blocks until a callback arrives, the server fails, or the context is
// done.
func (s *CallbackServer) Wait(ctx context.Context) (*Callback, error) {
	select {
	case cb := <-s.results:
		return cb, nil
	case err := <-s.failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RedirectURI returns the callback URL registered with the provider.
func (s *CallbackServer) RedirectURI() string {
	return s.baseURL + "/callback"
}

// Port returns the bound port.
func (s *CallbackServer) Port() int {
	return s.port
}

func (s *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	var accepted bool
	s.once.Do(func() {
		accepted = true
		s.accept(w, r)
	})
	if !accepted {
		http.Error(w, "Callback already processed", http.StatusConflict)
	}
}

// accept runs exactly once per server lifetime.
func (s *CallbackServer) accept(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	cb := &Callback{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		ErrorCode:        query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	var tmpl *template.Template
	var data interface{}
	if cb.Denied() {
		tmpl = template.Must(template.New("error").Parse(callbackErrorHTML))
		data = map[string]string{
			"Error":       cb.ErrorCode,
			"Description": cb.ErrorDescription,
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(callbackSuccessHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.results <- cb:
	default:
	}

	// Let the response flush before tearing the server down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
