//go:build cgo

package view

import (
	"os"

	"github.com/webview/webview_go"
)

// nativeWindow wraps webview_go behind the Window interface.
type nativeWindow struct {
	w webview.WebView
}

// Open probes for a display and creates the native webview. The probe
// runs first because gtk_init aborts the whole process when it cannot
// open a display, which would skip our exit handling.
func Open(opts Options) (Window, error) {
	if err := probeDisplay(); err != nil {
		return nil, err
	}

	// WebKitGTK renders a black window on some kiosk GPUs unless DMA-BUF
	// is disabled. Leave a user-provided value alone.
	if os.Getenv("WEBKIT_DISABLE_DMABUF_RENDERER") == "" {
		os.Setenv("WEBKIT_DISABLE_DMABUF_RENDERER", "1")
	}

	w := webview.New(false)
	if opts.Fullscreen {
		fullscreen(w.Window())
	}
	return &nativeWindow{w: w}, nil
}

func (n *nativeWindow) SetTitle(title string) { n.w.SetTitle(title) }

func (n *nativeWindow) SetSize(width, height int) {
	n.w.SetSize(width, height, webview.HintNone)
}

func (n *nativeWindow) Navigate(url string) { n.w.Navigate(url) }
func (n *nativeWindow) Run()                { n.w.Run() }
func (n *nativeWindow) Terminate()          { n.w.Terminate() }
func (n *nativeWindow) Dispatch(f func())   { n.w.Dispatch(f) }
func (n *nativeWindow) Destroy()            { n.w.Destroy() }
