package snapshot

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// relPath maps an absolute URL to its slash-separated path under the cache
// root. The scheme and host are dropped, so assets from every origin share
// one namespace, which is also how the page's rewritten references find
// them. Empty or directory-style paths become index.html and extension-less
// routes get a .html suffix so the mirror server can type them.
func relPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}

	rel := strings.TrimPrefix(u.Path, "/")
	rel = strings.TrimSuffix(rel, "/")
	if rel == "" {
		rel = "index.html"
	}
	if path.Ext(rel) == "" {
		rel += ".html"
	}

	rel = path.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("unsafe path for %q", rawURL)
	}
	return rel, nil
}

// localPath maps an absolute URL to a file path under root.
func localPath(root, rawURL string) (string, error) {
	rel, err := relPath(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// webPath maps an absolute URL to the path the mirror server serves it
// under.
func webPath(rawURL string) (string, error) {
	rel, err := relPath(rawURL)
	if err != nil {
		return "", err
	}
	return "/" + rel, nil
}
