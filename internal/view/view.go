// Package view drives the kiosk window. Rendering happens entirely in the
// system webview pointed at the local mirror server; this package only
// owns window lifecycle.
package view

import (
	"context"
	"errors"
	"log"
)

// ErrDisplayUnavailable reports that no display server could be reached,
// or that this build carries no GUI support at all.
var ErrDisplayUnavailable = errors.New("no display available")

// Window abstracts the native webview so launch logic can be tested
// without a display. Open returns the real implementation.
type Window interface {
	SetTitle(title string)
	SetSize(width, height int)
	Navigate(url string)
	Run()
	Terminate()
	Dispatch(f func())
	Destroy()
}

// Options configures the kiosk window.
type Options struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
}

// Launch shows target in the window and blocks until the window closes or
// ctx is cancelled. Cancellation terminates the window through Dispatch,
// because only the event loop thread may touch the native window.
func Launch(ctx context.Context, win Window, target string, opts Options) {
	win.SetTitle(opts.Title)
	win.SetSize(opts.Width, opts.Height)
	win.Navigate(target)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Println("[view] closing window")
			win.Dispatch(win.Terminate)
		case <-done:
		}
	}()

	win.Run()
	close(done)
}
