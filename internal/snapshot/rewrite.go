package snapshot

import (
	"bytes"
	"fmt"
	"net/url"

	"golang.org/x/net/html"
)

// rewriteHTML rewrites the page so asset references point at the mirror
// server instead of the network. Every link/script/img reference is resolved
// against base and replaced with the local path its download landed on, and
// a <base href="/"> is injected (when the page has none) so untouched
// relative links stay inside the mirror.
func rewriteHTML(base *url.URL, page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	hasBase := false
	var head *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				hasBase = true
			case "head":
				if head == nil {
					head = n
				}
			}
			if attr, ok := refAttrs[n.Data]; ok {
				rewriteAttr(n, attr, base)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !hasBase {
		baseNode := &html.Node{
			Type: html.ElementNode,
			Data: "base",
			Attr: []html.Attribute{{Key: "href", Val: "/"}},
		}
		if head != nil {
			head.InsertBefore(baseNode, head.FirstChild)
		} else {
			doc.InsertBefore(baseNode, doc.FirstChild)
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

func rewriteAttr(n *html.Node, attr string, base *url.URL) {
	for i, a := range n.Attr {
		if a.Key != attr || a.Val == "" {
			continue
		}
		abs := resolveRef(base, a.Val)
		if abs == "" {
			continue
		}
		local, err := webPath(abs)
		if err != nil {
			continue
		}
		n.Attr[i].Val = local
	}
}
