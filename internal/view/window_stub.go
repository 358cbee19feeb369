//go:build !cgo

package view

import "fmt"

// Open fails on builds without cgo, which cannot link the native webview.
// Server-only mode still works in such builds.
func Open(opts Options) (Window, error) {
	return nil, fmt.Errorf("%w: built without cgo, webview not linked", ErrDisplayUnavailable)
}
