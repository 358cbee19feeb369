package snapshot

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

var (
	cssURLRe    = regexp.MustCompile(`url\(([^)]+)\)`)
	cssImportRe = regexp.MustCompile(`@import\s+(?:url\()?['"]([^'"]+)['"]\)?`)
)

// refAttrs maps the tags scanned for asset references to the attribute that
// carries the reference.
var refAttrs = map[string]string{
	"link":   "href",
	"script": "src",
	"img":    "src",
}

// extractAssetURLs parses page HTML and returns the absolute URLs of every
// asset it references: link/script/img attributes plus url() and @import
// targets inside inline <style> blocks. References are resolved against
// base; data: and other non-http(s) references are skipped. The result is
// sorted and free of duplicates.
func extractAssetURLs(base *url.URL, page []byte) []string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attr, ok := refAttrs[n.Data]; ok {
				if ref := attrVal(n, attr); ref != "" {
					addRef(seen, base, ref)
				}
			}
			if n.Data == "style" {
				for _, u := range cssRefs(nodeText(n)) {
					addRef(seen, base, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return sortedKeys(seen)
}

// extractCSSURLs returns the absolute URLs referenced by a stylesheet via
// url() or @import, resolved against the stylesheet's own URL.
func extractCSSURLs(cssURL *url.URL, css []byte) []string {
	seen := make(map[string]struct{})
	for _, u := range cssRefs(string(css)) {
		addRef(seen, cssURL, u)
	}
	return sortedKeys(seen)
}

func cssRefs(css string) []string {
	var refs []string
	for _, m := range cssURLRe.FindAllStringSubmatch(css, -1) {
		raw := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if raw == "" || strings.HasPrefix(raw, "data:") {
			continue
		}
		refs = append(refs, raw)
	}
	for _, m := range cssImportRe.FindAllStringSubmatch(css, -1) {
		if strings.HasPrefix(m[1], "data:") {
			continue
		}
		refs = append(refs, m[1])
	}
	return refs
}

func addRef(seen map[string]struct{}, base *url.URL, ref string) {
	abs := resolveRef(base, ref)
	if abs == "" {
		return
	}
	seen[abs] = struct{}{}
}

// resolveRef resolves ref against base and returns the absolute URL, or ""
// for references the mirror cannot fetch (data:, javascript:, mailto:, ...).
func resolveRef(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
