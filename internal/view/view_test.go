package view

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeWindow records calls and blocks in Run like a real event loop.
type fakeWindow struct {
	mu       sync.Mutex
	title    string
	width    int
	height   int
	url      string
	calls    []string
	quit     chan struct{}
	quitOnce sync.Once
}

func newFakeWindow() *fakeWindow {
	return &fakeWindow{quit: make(chan struct{})}
}

func (f *fakeWindow) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	f.calls = append(f.calls, "SetTitle")
}

func (f *fakeWindow) SetSize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = width, height
	f.calls = append(f.calls, "SetSize")
}

func (f *fakeWindow) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	f.calls = append(f.calls, "Navigate")
}

func (f *fakeWindow) Run() {
	f.mu.Lock()
	f.calls = append(f.calls, "Run")
	f.mu.Unlock()
	<-f.quit
}

func (f *fakeWindow) Terminate() {
	f.mu.Lock()
	f.calls = append(f.calls, "Terminate")
	f.mu.Unlock()
	f.close()
}

func (f *fakeWindow) Dispatch(fn func()) { fn() }

func (f *fakeWindow) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "Destroy")
}

// close simulates the user closing the window.
func (f *fakeWindow) close() {
	f.quitOnce.Do(func() { close(f.quit) })
}

func (f *fakeWindow) callIndex(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == name {
			return i
		}
	}
	return -1
}

func TestLaunchConfiguresWindowBeforeRun(t *testing.T) {
	win := newFakeWindow()

	go func() {
		time.Sleep(50 * time.Millisecond)
		win.Terminate()
	}()

	Launch(context.Background(), win, "http://127.0.0.1:8337/", Options{
		Title:  "Offline Mirror",
		Width:  800,
		Height: 600,
	})

	win.mu.Lock()
	title, url, width, height := win.title, win.url, win.width, win.height
	win.mu.Unlock()

	if title != "Offline Mirror" {
		t.Errorf("title = %q, want %q", title, "Offline Mirror")
	}
	if url != "http://127.0.0.1:8337/" {
		t.Errorf("url = %q", url)
	}
	if width != 800 || height != 600 {
		t.Errorf("size = %dx%d, want 800x600", width, height)
	}

	nav, run := win.callIndex("Navigate"), win.callIndex("Run")
	if nav == -1 || run == -1 || nav > run {
		t.Errorf("Navigate must precede Run, calls: Navigate@%d Run@%d", nav, run)
	}
}

func TestLaunchTerminatesOnCancel(t *testing.T) {
	win := newFakeWindow()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		Launch(ctx, win, "http://127.0.0.1:8337/", Options{})
		close(done)
	}()

	// Let Launch reach the event loop, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Launch did not return after context cancellation")
	}

	if win.callIndex("Terminate") == -1 {
		t.Error("window was not terminated on cancel")
	}
}

func TestLaunchReturnsWhenWindowCloses(t *testing.T) {
	win := newFakeWindow()

	done := make(chan struct{})
	go func() {
		Launch(context.Background(), win, "http://127.0.0.1:8337/", Options{})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	win.close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Launch did not return after window close")
	}

	if win.callIndex("Terminate") != -1 {
		t.Error("Terminate called for a user-initiated close")
	}
}
