package session

import (
	"context"
	"time"
)

// Element is an opaque reference to a located DOM element. It is only valid
// within the page (and window) it was found in.
type Element interface {
	// Call invokes a named element method such as "click", "send_keys", "clear",
	// "submit", "get_attribute" or "text".
	Call(method string, args []any, kwargs map[string]any) (any, error)
	// MoveTo moves the pointer over the element.
	MoveTo() error
}

// Driver is the capability set actions use to remote-control the browser.
// Every error returned by an implementation must be a *DriverError.
type Driver interface {
	Get(ctx context.Context, url string) error
	CurrentURL() (string, error)
	PageSource() (string, error)

	FindElement(xpath string) (Element, error)
	// FindShadowElement locates xpath inside the shadow root of the first hostTag element.
	FindShadowElement(hostTag, xpath string) (Element, error)
	// WaitVisible polls until xpath resolves to a visible element or timeout elapses.
	WaitVisible(ctx context.Context, xpath string, timeout time.Duration) (Element, error)
	// SendKeys types into the currently focused element.
	SendKeys(keys string) error

	CurrentWindowHandle() (string, error)
	WindowHandles() ([]string, error)
	SwitchWindow(handle string) error
	// SwitchTo dispatches a switch_to.<method> command (frame, default_content, alert_accept, ...).
	SwitchTo(method string, args []any, kwargs map[string]any) (any, error)
	// Command dispatches a generic named remote command (get, back, refresh, execute_script, ...).
	Command(method string, args []any, kwargs map[string]any) (any, error)

	Cookies() ([]map[string]any, error)
	AddCookie(cookie map[string]any) error

	Screenshot() ([]byte, error)
	Authenticate(user, password string) error
	MaximizeWindow() error
	Quit() error
}

// DriverFactory launches a driver configured by opts.
type DriverFactory func(ctx context.Context, opts Options) (Driver, error)
