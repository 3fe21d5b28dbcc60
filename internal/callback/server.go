package callback

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// WaitTimeout is how long to wait for the provider to redirect back.
const WaitTimeout = 10 * time.Minute

//go:embed templates/callback_success.html
var successHTML string

//go:embed templates/callback_error.html
var errorHTML string

// Result carries the raw redirect parameters from the provider back to the
// flow that is waiting on them. Classification happens in Interpret.
type Result struct {
	// Query is the full callback query string, already parsed.
	Query url.Values
}

// Server is a temporary loopback HTTP server that receives the provider's
// redirect. It serves a single callback, renders a terminal page so the
// code/state parameters leave the user-visible surface, then shuts down.
type Server struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *Result
	errorCh  chan error
	once     sync.Once
	baseURL  string
}

// NewServer creates a callback server on the specified port. Port 0 binds a
// random free port, usable only with providers that accept wildcard loopback
// redirect URIs.
func NewServer(port int) *Server {
	return &Server{
		port:     port,
		resultCh: make(chan *Result, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start begins listening and returns the redirect URI to use in the
// authorization request. The server stops when the context is cancelled.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.baseURL = fmt.Sprintf("http://localhost:%d", s.port)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
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

// Wait blocks until the callback arrives, the server fails, or the context
// is done.
func (s *Server) Wait(ctx context.Context) (*Result, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback handles the provider's redirect. Only the first request is
// processed; a state token is valid for exactly one callback.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *Server) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()

	var tmpl *template.Template
	var data interface{}

	if errCode := query.Get("error"); errCode != "" {
		tmpl = template.Must(template.New("error").Parse(errorHTML))
		data = map[string]string{
			"Error":       errCode,
			"Description": query.Get("error_description"),
		}
	} else {
		tmpl = template.Must(template.New("success").Parse(successHTML))
		data = map[string]string{}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	select {
	case s.resultCh <- &Result{Query: query}:
	default:
	}

	// Give the response time to flush before tearing the listener down.
	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *Server) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI served by this server.
func (s *Server) RedirectURI() string {
	return s.baseURL + "/callback"
}

// Port returns the bound port.
func (s *Server) Port() int {
	return s.port
}
