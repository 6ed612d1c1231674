package window

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/charmbracelet/log"
	"github.com/cogentcore/webgpu/wgpu"
)

// MouseButton identifies a mouse button in button callbacks.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Window is the platform window the wgpu backend presents into. It reports framebuffer
// resizes, input and close requests through callbacks run on the thread that calls
// ProcessMessages.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes.
	// Zero-sized events, as sent while the window is minimized, are not forwarded.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height uint32))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta, positive away from the user
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the key and whether it is down
	SetKeyCallback(callback func(key Key, down bool))

	// SetMouseButtonCallback sets the callback for mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the button, whether it is down and the cursor position
	SetMouseButtonCallback(callback func(button MouseButton, down bool, x, y float32))

	// SetCursorCallback sets the callback for cursor movement.
	//
	// Parameters:
	//   - callback: function receiving the cursor position in pixels
	SetCursorCallback(callback func(x, y float32))

	// SetCloseCallback sets the function called once when the window is asked to close.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetCloseCallback(callback func())

	// SurfaceDescriptor returns the descriptor the wgpu backend creates its surface from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform surface descriptor, or nil once closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size returns the current framebuffer size in pixels.
	//
	// Returns:
	//   - uint32: width in pixels
	//   - uint32: height in pixels
	Size() (uint32, uint32)

	// IsRunning returns true until the window is closed.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// RequestClose asks the message loop to stop after the current iteration.
	RequestClose()

	// ProcessMessages runs the window message loop until the window is closed, calling
	// the update callback each iteration.
	ProcessMessages()

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	mu  *sync.Mutex
	log *log.Logger

	title               string
	width, height       uint32
	minWidth, minHeight uint32
	maxWidth, maxHeight uint32
	closeOnEscape       bool
	platform            *glfwWindow
	closeNotified       bool
	onUpdate            func()
	onResize            func(width, height uint32)
	onScroll            func(delta float32)
	onKey               func(key Key, down bool)
	onMouseButton       func(button MouseButton, down bool, x, y float32)
	onCursor            func(x, y float32)
	onClose             func()
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a platform window. It locks the calling goroutine to its OS
// thread, which must also run ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		mu:            &sync.Mutex{},
		log:           logger.Component("window"),
		title:         "oxy-deferred",
		width:         1280,
		height:        720,
		minWidth:      320,
		minHeight:     200,
		closeOnEscape: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.width == 0 || w.height == 0 {
		return nil, fmt.Errorf("window: invalid size %dx%d", w.width, w.height)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	w.log.Debug("window created", "title", w.title, "width", w.width, "height", w.height)
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func())                     { w.onUpdate = callback }
func (w *engineWindow) SetResizeCallback(callback func(width, height uint32)) { w.onResize = callback }
func (w *engineWindow) SetScrollCallback(callback func(delta float32))        { w.onScroll = callback }
func (w *engineWindow) SetKeyCallback(callback func(key Key, down bool))      { w.onKey = callback }
func (w *engineWindow) SetCursorCallback(callback func(x, y float32))         { w.onCursor = callback }
func (w *engineWindow) SetCloseCallback(callback func())                      { w.onClose = callback }

func (w *engineWindow) SetMouseButtonCallback(callback func(button MouseButton, down bool, x, y float32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) Size() (uint32, uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) RequestClose() {
	platformRequestClose(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
	w.notifyClose()
}

func (w *engineWindow) Close() error {
	w.notifyClose()
	return platformCloseWindow(w)
}

// resized records a framebuffer size change and forwards it when it is usable.
func (w *engineWindow) resized(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.mu.Lock()
	changed := uint32(width) != w.width || uint32(height) != w.height
	w.width, w.height = uint32(width), uint32(height)
	w.mu.Unlock()
	if changed && w.onResize != nil {
		w.onResize(uint32(width), uint32(height))
	}
}

func (w *engineWindow) notifyClose() {
	w.mu.Lock()
	notified := w.closeNotified
	w.closeNotified = true
	w.mu.Unlock()
	if !notified && w.onClose != nil {
		w.onClose()
	}
}
