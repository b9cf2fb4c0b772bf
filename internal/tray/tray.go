// Package tray provides a system tray menu for the mudra overlay.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/readiness"
)

// Tray represents the system tray application.
type Tray struct {
	onFace  func(enabled bool)
	onHand  func(enabled bool)
	onRetry func()
	onOpen  func()
	onQuit  func()
	face    bool
	hand    bool
	status  string
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuFace   *systray.MenuItem
	menuHand   *systray.MenuItem
	menuRetry  *systray.MenuItem
}

// New creates a new Tray with both tracking toggles on.
func New() *Tray {
	return &Tray{
		face:   true,
		hand:   true,
		status: readiness.MsgLoadingFaceModel,
	}
}

// OnFaceTracking sets the callback called when the face toggle is clicked.
func (t *Tray) OnFaceTracking(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFace = fn
}

// OnHandTracking sets the callback called when the hand toggle is clicked.
func (t *Tray) OnHandTracking(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onHand = fn
}

// OnRetry sets the callback called when the retry menu item is clicked.
func (t *Tray) OnRetry(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRetry = fn
}

// OnOpen sets the callback called when the open preview menu item is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra face and hand tracking")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Tracking status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuFace = systray.AddMenuItemCheckbox("Face tracking", "Toggle face landmarks", t.face)
	t.menuHand = systray.AddMenuItemCheckbox("Hand tracking", "Toggle hand landmarks", t.hand)
	systray.AddSeparator()

	t.menuRetry = systray.AddMenuItem("Retry", "Reload the camera and models")
	t.menuRetry.Hide()
	t.mu.Unlock()

	menuOpen := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuFace.ClickedCh:
				t.toggle(true)
			case <-t.menuHand.ClickedCh:
				t.toggle(false)
			case <-t.menuRetry.ClickedCh:
				t.call(t.retryCallback())
			case <-menuOpen.ClickedCh:
				t.call(t.openCallback())
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// toggle flips the face toggle when face is set, the hand toggle otherwise.
// Only the clicked toggle is reported.
func (t *Tray) toggle(face bool) {
	t.mu.Lock()
	var enabled bool
	var callback func(bool)
	if face {
		t.face = !t.face
		setChecked(t.menuFace, t.face)
		enabled, callback = t.face, t.onFace
	} else {
		t.hand = !t.hand
		setChecked(t.menuHand, t.hand)
		enabled, callback = t.hand, t.onHand
	}
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if item == nil {
		return
	}
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func (t *Tray) retryCallback() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onRetry
}

func (t *Tray) openCallback() func() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.onOpen
}

func (t *Tray) call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	t.call(callback)
	systray.Quit()
}

// SetReadiness shows snap as the status line. The retry item is only
// visible after a failure.
func (t *Tray) SetReadiness(snap readiness.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = StatusText(snap)
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
	if t.menuRetry != nil {
		if snap.State() == readiness.Failed {
			t.menuRetry.Show()
		} else {
			t.menuRetry.Hide()
		}
	}
}

// SetTracking shows the current toggles, including changes made through
// the HTTP API.
func (t *Tray) SetTracking(face, hand bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.face, t.hand = face, hand
	setChecked(t.menuFace, face)
	setChecked(t.menuHand, hand)
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Tracking returns the toggles as shown in the menu.
func (t *Tray) Tracking() (face, hand bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.face, t.hand
}

// StatusText is the one-line status for snap.
func StatusText(snap readiness.Snapshot) string {
	switch snap.State() {
	case readiness.Running:
		return "● Tracking"
	case readiness.Failed:
		return "✕ " + snap.Error
	default:
		return "○ " + snap.Message()
	}
}
