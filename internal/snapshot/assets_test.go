package snapshot

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestExtractAssetURLs(t *testing.T) {
	base := mustParse(t, "https://brewery.example/taps")
	page := []byte(`<!doctype html>
<html>
<head>
<link rel="stylesheet" href="/css/site.css">
<script src="js/app.js"></script>
<style>
body { background: url('/img/bg.png'); }
@import "extra.css";
</style>
</head>
<body>
<img src="https://cdn.example/logo.png">
<img src="data:image/png;base64,AAAA">
<a href="/other">a link, not an asset</a>
</body>
</html>`)

	got := extractAssetURLs(base, page)
	want := []string{
		"https://brewery.example/css/site.css",
		"https://brewery.example/extra.css",
		"https://brewery.example/img/bg.png",
		"https://brewery.example/js/app.js",
		"https://cdn.example/logo.png",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extracted URLs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractAssetURLsStripsFragments(t *testing.T) {
	base := mustParse(t, "https://brewery.example/")
	page := []byte(`<html><body><img src="/img/pour.svg#beer"></body></html>`)

	got := extractAssetURLs(base, page)
	want := []string{"https://brewery.example/img/pour.svg"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extracted URLs mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCSSURLs(t *testing.T) {
	cssURL := mustParse(t, "https://brewery.example/css/site.css")
	css := []byte(`
@import url("theme.css");
h1 { background: url(../img/banner.jpg); }
.icon { content: url("data:image/svg+xml,ignored"); }
`)

	got := extractCSSURLs(cssURL, css)
	want := []string{
		"https://brewery.example/css/theme.css",
		"https://brewery.example/img/banner.jpg",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extracted URLs mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRefSkipsUnfetchable(t *testing.T) {
	base := mustParse(t, "https://brewery.example/")
	for _, ref := range []string{
		"data:image/png;base64,AAAA",
		"javascript:void(0)",
		"mailto:prost@brewery.example",
	} {
		if got := resolveRef(base, ref); got != "" {
			t.Errorf("resolveRef(%q) = %q, want skip", ref, got)
		}
	}
}
