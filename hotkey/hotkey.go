// Package hotkey delivers global push-to-talk key events
// (Ctrl+Shift+Space) regardless of which window has focus.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
