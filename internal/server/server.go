// Package server exposes the snapshot directory over loopback HTTP for the
// webview to render, along with a reload WebSocket and a status endpoint
// under the reserved /.beerview/ prefix.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-http-utils/etag"

	"github.com/richard-vock/beer-display-viewer/internal/store"
	"github.com/richard-vock/beer-display-viewer/web"
)

// Options configures the mirror server.
type Options struct {
	Addr      string // listen address, e.g. 127.0.0.1:8337
	CacheRoot string // snapshot directory served at /
	Target    string // upstream URL, reported by the status endpoint
	Version   string
	Store     *store.Store // optional, adds run history to the status endpoint
}

// Server serves the mirrored site on the loopback interface.
type Server struct {
	opts    Options
	hub     *Hub
	srv     *http.Server
	ln      net.Listener
	reload  string
	started time.Time
}

// New builds the server. Call Start to bind and serve.
func New(opts Options) *Server {
	s := &Server{
		opts: opts,
		hub:  NewHub(),
		// Read the reload client once at startup for injection.
		reload:  web.ReloadScript(),
		started: time.Now(),
	}

	sa := &statusAPI{
		version:   opts.Version,
		target:    opts.Target,
		cacheRoot: opts.CacheRoot,
		store:     opts.Store,
		hub:       s.hub,
		started:   s.started,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.beerview/ws", s.hub.HandleWS)
	mux.HandleFunc("GET /.beerview/status", sa.get)
	mux.Handle("/", s.mirrorHandler())

	s.srv = &http.Server{
		Addr:    opts.Addr,
		Handler: withMiddleware(mux),
	}
	return s
}

// Hub returns the reload hub so snapshot changes can be broadcast.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and serves in the background. Binding is
// synchronous so a busy port is reported here rather than from a goroutine.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go s.hub.Run(ctx)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[http] server error: %v", err)
		}
	}()

	log.Printf("[http] serving %s on http://%s", s.opts.CacheRoot, ln.Addr())
	return nil
}

// URL returns the root URL of the running server.
func (s *Server) URL() string {
	return "http://" + s.ln.Addr().String() + "/"
}

// Shutdown stops the HTTP server, waiting up to the context deadline for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// mirrorHandler serves the snapshot directory. HTML pages get the reload
// client injected; everything is served with ETags so the webview can
// revalidate cheaply across reloads.
func (s *Server) mirrorHandler() http.Handler {
	files := http.FileServer(http.Dir(s.opts.CacheRoot))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := s.pagePath(r.URL.Path); p != "" {
			s.servePage(w, r, p)
			return
		}
		files.ServeHTTP(w, r)
	})

	return etag.Handler(h, false)
}

// pagePath maps a request path to the local file of an HTML page, or ""
// when the request is not for a page. Directory requests resolve to their
// index.html, matching how the snapshot lays out files.
func (s *Server) pagePath(urlPath string) string {
	p := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") || p == "/" {
		p = strings.TrimSuffix(p, "/") + "/index.html"
	}
	if !strings.HasSuffix(p, ".html") {
		return ""
	}
	return filepath.Join(s.opts.CacheRoot, filepath.FromSlash(p))
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, file string) {
	page, err := os.ReadFile(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// Inject the reload client right after <head>, next to the base tag
	// the snapshot already put there.
	injected := strings.Replace(string(page), "<head>", "<head>\n"+s.reload, 1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(injected))
}

func withMiddleware(next http.Handler) http.Handler {
	verbose := os.Getenv("BEERVIEW_HTTP_LOG") != ""
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Recovery
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[http] panic: %v", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)

		// The webview fetches every asset on every reload, so request
		// logging is opt-in.
		if verbose {
			log.Printf("[http] %s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}
