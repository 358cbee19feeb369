// Package web carries the embedded offline placeholder the viewer shows
// until the first successful snapshot.
package web

import (
	"embed"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
)

//go:embed static/*
var staticFS embed.FS

// ReloadScript returns the script tag the server injects into every page.
// The script holds a WebSocket open and reloads the page when the server
// announces a new snapshot.
func ReloadScript() string {
	js, _ := staticFS.ReadFile("static/reload.js")
	return "<script>\n" + string(js) + "</script>"
}

// WriteOffline writes the placeholder into dir as index.html together with
// its stylesheet, naming the target the viewer keeps trying to reach.
func WriteOffline(dir, targetURL string) error {
	page, err := staticFS.ReadFile("static/offline.html")
	if err != nil {
		return err
	}
	css, err := staticFS.ReadFile("static/offline.css")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out := strings.ReplaceAll(string(page), "{{target}}", html.EscapeString(targetURL))
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(out), 0o644); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "offline.css"), css, 0o644); err != nil {
		return fmt.Errorf("write placeholder stylesheet: %w", err)
	}
	return nil
}
