package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const tapListHTML = `<!doctype html>
<html><head>
<link rel="stylesheet" href="/css/site.css">
<script src="/js/app.js"></script>
</head><body>
<h1>On Tap</h1>
<img src="/img/logo.png">
</body></html>`

// newTargetServer serves a small site shaped like a beer display: a page,
// a stylesheet that pulls in one more image, a script and a logo.
func newTargetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(tapListHTML))
	})
	mux.HandleFunc("/css/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`body { background: url("/img/bg.png"); }`))
	})
	mux.HandleFunc("/js/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`console.log("prost");`))
	})
	mux.HandleFunc("/img/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-logo"))
	})
	mux.HandleFunc("/img/bg.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("png-bg"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSnapshotter(t *testing.T, target string, opts Options) (*Snapshotter, string) {
	t.Helper()
	root := t.TempDir()
	snap, err := New(root, target, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return snap, root
}

func TestFetchMirrorsPageAndAssets(t *testing.T) {
	srv := newTargetServer(t)
	snap, root := newTestSnapshotter(t, srv.URL, Options{})

	res, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !res.Changed {
		t.Error("first fetch reported no change")
	}
	if res.Assets != 4 {
		t.Errorf("assets = %d, want 4", res.Assets)
	}
	if res.Failed != 0 {
		t.Errorf("failed = %d, want 0", res.Failed)
	}
	if res.IndexSHA256 == "" {
		t.Error("index hash missing")
	}

	for _, rel := range []string{
		"index.html",
		filepath.Join("css", "site.css"),
		filepath.Join("js", "app.js"),
		filepath.Join("img", "logo.png"),
		filepath.Join("img", "bg.png"),
	} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("missing cached file %s: %v", rel, err)
		}
	}

	index, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(index)
	for _, want := range []string{`href="/css/site.css"`, `src="/js/app.js"`, `src="/img/logo.png"`, `<base href="/"`} {
		if !strings.Contains(got, want) {
			t.Errorf("index missing %s", want)
		}
	}
	u, _ := url.Parse(srv.URL)
	if strings.Contains(got, u.Host) {
		t.Error("index still references the origin host")
	}
}

func TestFetchIdempotent(t *testing.T) {
	srv := newTargetServer(t)
	snap, _ := newTestSnapshotter(t, srv.URL, Options{})

	first, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	second, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if second.Changed {
		t.Error("second fetch of unchanged content reported a change")
	}
	if second.Bytes != 0 {
		t.Errorf("second fetch wrote %d bytes, want 0", second.Bytes)
	}
	if second.IndexSHA256 != first.IndexSHA256 {
		t.Errorf("index hash changed across identical fetches: %s != %s", second.IndexSHA256, first.IndexSHA256)
	}
}

func TestFetchCountsFailedAssets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><link rel="stylesheet" href="/gone.css"><script src="/js/app.js"></script></head></html>`))
	})
	mux.HandleFunc("/js/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	snap, _ := newTestSnapshotter(t, srv.URL, Options{})
	res, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("failed = %d, want 1", res.Failed)
	}
	if res.Assets != 1 {
		t.Errorf("assets = %d, want 1", res.Assets)
	}
}

func TestFetchUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	snap, _ := newTestSnapshotter(t, target, Options{})
	_, err := snap.Fetch(context.Background())
	if !errors.Is(err, ErrTargetUnreachable) {
		t.Errorf("err = %v, want ErrTargetUnreachable", err)
	}
}

func TestFetchSendsConfiguredHeaders(t *testing.T) {
	var ua, auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
		auth.Store(r.Header.Get("Authorization"))
		w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(srv.Close)

	snap, _ := newTestSnapshotter(t, srv.URL, Options{
		UserAgent: "beerview-test/9",
		AuthToken: "s3cret",
	})
	if _, err := snap.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got := ua.Load(); got != "beerview-test/9" {
		t.Errorf("User-Agent = %v", got)
	}
	if got := auth.Load(); got != "Bearer s3cret" {
		t.Errorf("Authorization = %v", got)
	}
}

func TestFetchSkipsPageLinks(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><link rel="alternate" href="/archive.html"></head></html>`))
	})
	mux.HandleFunc("/archive.html", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	snap, _ := newTestSnapshotter(t, srv.URL, Options{})
	res, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Assets != 0 {
		t.Errorf("assets = %d, want 0", res.Assets)
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("other pages were fetched %d times, want 0", n)
	}
}

func TestFetchPreloadPaths(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// The page references nothing; print.css is only preloaded.
		w.Write([]byte(`<html><head></head><body>taps</body></html>`))
	})
	mux.HandleFunc("/css/print.css", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("@page {}"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	snap, root := newTestSnapshotter(t, srv.URL, Options{
		PreloadPaths: []string{"/css/print.css"},
	})
	res, err := snap.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Assets != 1 {
		t.Errorf("assets = %d, want 1", res.Assets)
	}
	if _, err := os.Stat(filepath.Join(root, "css", "print.css")); err != nil {
		t.Errorf("preloaded path not cached: %v", err)
	}
}

func TestEnsureInitialWritesPlaceholderWhenOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	snap, root := newTestSnapshotter(t, target, Options{})
	res, err := snap.EnsureInitial(context.Background())
	if !errors.Is(err, ErrTargetUnreachable) {
		t.Errorf("err = %v, want ErrTargetUnreachable", err)
	}
	if res == nil {
		t.Fatal("no result for the placeholder fallback")
	}
	if !res.Changed {
		t.Error("placeholder write not reported as a change")
	}

	index, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatalf("placeholder index missing: %v", err)
	}
	if !strings.Contains(string(index), "Offline snapshot not yet available") {
		t.Error("placeholder text missing")
	}
	if !strings.Contains(string(index), target) {
		t.Error("placeholder does not name the target")
	}
	if _, err := os.Stat(filepath.Join(root, "offline.css")); err != nil {
		t.Errorf("placeholder stylesheet missing: %v", err)
	}
}

func TestEnsureInitialKeepsCachedCopyWhenOffline(t *testing.T) {
	srv := newTargetServer(t)
	snap, root := newTestSnapshotter(t, srv.URL, Options{})

	if _, err := snap.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	before, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatal(err)
	}

	srv.Close()

	res, err := snap.EnsureInitial(context.Background())
	if !errors.Is(err, ErrTargetUnreachable) {
		t.Errorf("err = %v, want ErrTargetUnreachable", err)
	}
	if res == nil {
		t.Fatal("no result for the cached fallback")
	}

	after, err := os.ReadFile(filepath.Join(root, "index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("cached snapshot was replaced while offline")
	}
}
