//go:build linux

package view

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	xOpenDisplayFn  func(name *byte) uintptr
	xCloseDisplayFn func(display uintptr) int32
	x11Once         sync.Once
	x11OK           bool
)

func initX11() {
	handle, err := purego.Dlopen("libX11.so.6", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return
	}
	purego.RegisterLibFunc(&xOpenDisplayFn, handle, "XOpenDisplay")
	purego.RegisterLibFunc(&xCloseDisplayFn, handle, "XCloseDisplay")
	x11OK = true
}

// probeDisplay checks for a reachable display server before any GTK call,
// because gtk_init exits the process itself when it cannot open one.
func probeDisplay() error {
	if waylandSocketPresent() {
		return nil
	}
	if os.Getenv("DISPLAY") == "" {
		return fmt.Errorf("%w: DISPLAY is not set and no Wayland socket found", ErrDisplayUnavailable)
	}

	x11Once.Do(initX11)
	if !x11OK {
		// No libX11 to ask; trust DISPLAY and let GTK decide.
		return nil
	}

	d := xOpenDisplayFn(nil)
	if d == 0 {
		return fmt.Errorf("%w: cannot open display %q", ErrDisplayUnavailable, os.Getenv("DISPLAY"))
	}
	xCloseDisplayFn(d)
	return nil
}

func waylandSocketPresent() bool {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return false
	}
	sock := os.Getenv("WAYLAND_DISPLAY")
	if sock == "" {
		sock = "wayland-0"
	}
	_, err := os.Stat(filepath.Join(dir, sock))
	return err == nil
}

var (
	gtkFullscreenFn func(window uintptr)
	gtkOnce         sync.Once
	gtkOK           bool
)

func initGTK() {
	// webview links GTK already, so Dlopen resolves to the loaded copy.
	for _, lib := range []string{"libgtk-3.so.0", "libgtk-4.so.1"} {
		handle, err := purego.Dlopen(lib, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
		if err != nil {
			continue
		}
		purego.RegisterLibFunc(&gtkFullscreenFn, handle, "gtk_window_fullscreen")
		gtkOK = true
		return
	}
}

// fullscreen puts the GTK window behind the webview into fullscreen.
// webview_go has no fullscreen call of its own.
func fullscreen(window unsafe.Pointer) {
	gtkOnce.Do(initGTK)
	if !gtkOK || window == nil {
		log.Println("[view] fullscreen requested but GTK is not loadable")
		return
	}
	gtkFullscreenFn(uintptr(window))
}
