package messages

import (
	"screen-translate/src/screenshot"
)

// Message is the base interface for everything that crosses the bridge or the router
type Message interface {
	Type() string
}

// Channel names. Surface-facing names are part of the wire contract and must not change.
const (
	TypeStartCapture       = "start-capture"
	TypeCaptureRegion      = "capture-region"
	TypeCloseCaptureWindow = "close-capture-window"
	TypeCaptureComplete    = "capture-complete"
	TypeGetSystemFonts     = "get-system-fonts"

	TypeHotkeyPressed   = "HotkeyPressed"
	TypeTrayMenuClicked = "TrayMenuClicked"
	TypeDieNow          = "DIENOW"
)

// StartCapture - sent by the results surface (or hotkey/tray via the host) to open the overlay
type StartCapture struct{}

func (m StartCapture) Type() string { return TypeStartCapture }

// CaptureRegion - sent by the overlay when the user finishes dragging a rectangle
type CaptureRegion struct {
	Region screenshot.Region
}

func (m CaptureRegion) Type() string { return TypeCaptureRegion }

// CloseCaptureWindow - sent by the overlay when the user cancels
type CloseCaptureWindow struct{}

func (m CloseCaptureWindow) Type() string { return TypeCloseCaptureWindow }

// CaptureComplete - delivered to the results surface once per session.
// Err is set when the primary display could not be captured.
type CaptureComplete struct {
	SessionID uint64
	Image     screenshot.ScreenImage
	Region    screenshot.Region
	Err       error
}

func (m CaptureComplete) Type() string { return TypeCaptureComplete }

// GetSystemFonts - invoke request; the host answers exactly once on Reply
type GetSystemFonts struct {
	Reply chan<- []string
}

func (m GetSystemFonts) Type() string { return TypeGetSystemFonts }

// HotkeyPressed - sent by the hotkey service when the combination is detected
type HotkeyPressed struct {
	Combo string // e.g., "Ctrl+Alt+T"
}

func (m HotkeyPressed) Type() string { return TypeHotkeyPressed }

// TrayMenuClicked - sent by the tray when the user picks a menu item
type TrayMenuClicked struct {
	Action string // "capture" or "exit"
}

func (m TrayMenuClicked) Type() string { return TypeTrayMenuClicked }

// DIENOW - emergency shutdown
type DIENOW struct{}

func (m DIENOW) Type() string { return TypeDieNow }

// MessageEnvelope wraps messages with metadata for routing
type MessageEnvelope struct {
	From    string  // Source endpoint name
	To      string  // Destination endpoint name ("*" for broadcast)
	Message Message // The actual message
}

// Endpoint names
const (
	EndpointHost    = "host"
	EndpointResults = "results"
	EndpointOverlay = "overlay"
	EndpointHotkey  = "hotkey"
	EndpointTray    = "tray"
	EndpointMain    = "main"
)

// Tray actions
const (
	ActionCapture = "capture"
	ActionExit    = "exit"
)
