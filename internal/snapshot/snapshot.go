// Package snapshot mirrors the display target and its assets into a local
// cache directory, so the viewer has something to show with or without a
// network connection.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richard-vock/beer-display-viewer/web"
)

// ErrTargetUnreachable means the display target could not be fetched. The
// viewer absorbs it by showing the cached copy or the offline placeholder
// instead of exiting.
var ErrTargetUnreachable = errors.New("display target unreachable")

// Options configures a Snapshotter beyond root and target.
type Options struct {
	UserAgent    string
	AuthToken    string
	PreloadPaths []string
}

// Result describes one snapshot run.
type Result struct {
	Changed     bool   // any cached byte differs from the previous run
	IndexPath   string // rewritten page location under the cache root
	Assets      int    // assets fetched
	Failed      int    // assets that could not be fetched
	Bytes       int64  // bytes written to the cache
	IndexSHA256 string
	Started     time.Time
	Finished    time.Time
}

// Snapshotter fetches the target page plus referenced assets into a cache
// directory and rewrites the page to load everything from the mirror
// server.
type Snapshotter struct {
	target  *url.URL
	root    string
	client  *client
	preload []string
}

// New creates a Snapshotter caching target under root.
func New(root, target string, opts Options) (*Snapshotter, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("target url: %w", err)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "beerview/1.0"
	}
	return &Snapshotter{
		target:  u,
		root:    root,
		client:  newClient(ua, opts.AuthToken),
		preload: opts.PreloadPaths,
	}, nil
}

// IndexPath returns where the rewritten page lands.
func (s *Snapshotter) IndexPath() string {
	return filepath.Join(s.root, "index.html")
}

// Fetch takes one full snapshot: page, referenced assets, assets referenced
// from downloaded stylesheets, then the rewritten page as index.html.
// Individual asset failures are logged and counted but do not fail the run;
// an unreachable page does, wrapping ErrTargetUnreachable.
func (s *Snapshotter) Fetch(ctx context.Context) (*Result, error) {
	res := &Result{Started: time.Now(), IndexPath: s.IndexPath()}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, fmt.Errorf("cache root: %w", err)
	}
	oldIndex, _ := os.ReadFile(s.IndexPath())

	log.Printf("[snapshot] refreshing from %s into %s", s.target, s.root)
	page, err := s.client.get(ctx, s.target.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTargetUnreachable, err)
	}

	assets := make(map[string]struct{})
	for _, u := range extractAssetURLs(s.target, page) {
		assets[u] = struct{}{}
	}
	for _, p := range s.preload {
		if abs := resolveRef(s.target, p); abs != "" {
			assets[abs] = struct{}{}
		}
	}

	// First pass: everything the page references. Stylesheets are scanned
	// for further url()/@import targets, fetched in a second pass.
	fetched := make(map[string]struct{})
	var fromCSS []string
	for _, assetURL := range sortedKeys(assets) {
		dest, ok := s.fetchAsset(ctx, assetURL, fetched, res)
		if !ok {
			continue
		}
		if strings.EqualFold(filepath.Ext(dest), ".css") {
			if css, err := os.ReadFile(dest); err == nil {
				if u, err := url.Parse(assetURL); err == nil {
					fromCSS = append(fromCSS, extractCSSURLs(u, css)...)
				}
			}
		}
	}
	for _, assetURL := range dedupSorted(fromCSS) {
		s.fetchAsset(ctx, assetURL, fetched, res)
	}

	rewritten, err := rewriteHTML(s.target, page)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(oldIndex, rewritten) {
		if err := os.WriteFile(s.IndexPath(), rewritten, 0o644); err != nil {
			return nil, fmt.Errorf("write index: %w", err)
		}
		res.Changed = true
		res.Bytes += int64(len(rewritten))
	}
	sum := sha256.Sum256(rewritten)
	res.IndexSHA256 = hex.EncodeToString(sum[:])
	res.Finished = time.Now()
	return res, nil
}

// fetchAsset downloads one asset into the cache, updating res. It returns
// the destination path and whether the asset is now cached.
func (s *Snapshotter) fetchAsset(ctx context.Context, assetURL string, fetched map[string]struct{}, res *Result) (string, bool) {
	if strings.HasSuffix(assetURL, ".html") {
		// Pages other than the target are not part of the display.
		return "", false
	}
	if _, done := fetched[assetURL]; done {
		return "", false
	}
	fetched[assetURL] = struct{}{}

	dest, err := localPath(s.root, assetURL)
	if err != nil {
		log.Printf("[snapshot] asset %s: %v", assetURL, err)
		res.Failed++
		return "", false
	}
	changed, written, err := s.client.download(ctx, assetURL, dest)
	if err != nil {
		log.Printf("[snapshot] asset %s: %v", assetURL, err)
		res.Failed++
		return "", false
	}
	res.Assets++
	if changed {
		res.Changed = true
		res.Bytes += written
	}
	return dest, true
}

// EnsureInitial produces a displayable index before the window opens: a
// fresh snapshot when the target is reachable, otherwise the cached copy
// from an earlier run, otherwise the embedded offline placeholder. When the
// fetch failed the error is returned alongside the fallback result so the
// run history records it; the viewer keeps going whenever a result comes
// back.
func (s *Snapshotter) EnsureInitial(ctx context.Context) (*Result, error) {
	res, err := s.Fetch(ctx)
	if err == nil {
		return res, nil
	}

	now := time.Now()
	res = &Result{Started: now, Finished: now, IndexPath: s.IndexPath()}
	if _, statErr := os.Stat(s.IndexPath()); statErr == nil {
		log.Printf("[snapshot] offline, keeping cached snapshot: %v", err)
		return res, err
	}
	if werr := web.WriteOffline(s.root, s.target.String()); werr != nil {
		return nil, fmt.Errorf("write offline placeholder: %w", werr)
	}
	res.Changed = true
	log.Printf("[snapshot] offline with an empty cache, wrote placeholder: %v", err)
	return res, err
}

func dedupSorted(urls []string) []string {
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return sortedKeys(set)
}
