// Package sessiontest provides an in-memory session.Driver for tests.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// Call records a single dispatched method.
type Call struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

type Element struct {
	XPath  string
	Calls  []Call
	Result any
	Err    error
	Hovers int
	// OnCall runs after a call is recorded, e.g. to simulate a download.
	OnCall func(method string)
}

func (e *Element) Call(method string, args []any, kwargs map[string]any) (any, error) {
	e.Calls = append(e.Calls, Call{Method: method, Args: args, Kwargs: kwargs})
	if e.OnCall != nil {
		e.OnCall(method)
	}
	if e.Err != nil {
		return nil, session.Fail(method, e.Err)
	}
	return e.Result, nil
}

func (e *Element) MoveTo() error {
	e.Hovers++
	return nil
}

// Driver is a scriptable fake browser. Set Errors[op] to make op fail.
type Driver struct {
	Elements       map[string]*Element
	ShadowElements map[string]*Element
	Handles        []string
	Current        string
	Jar            []map[string]any
	URL            string
	Source         string
	PNG            []byte
	Errors         map[string]error

	Visited   []string
	Typed     []string
	Commands  []Call
	Switches  []Call
	Logins    [][2]string
	Maximized int
	QuitCount int
}

func NewDriver() *Driver {
	return &Driver{
		Elements:       map[string]*Element{},
		ShadowElements: map[string]*Element{},
		Handles:        []string{"main"},
		Current:        "main",
		Errors:         map[string]error{},
		PNG:            []byte("\x89PNG fake"),
	}
}

// Factory returns a session.DriverFactory that always hands out d.
func (d *Driver) Factory() session.DriverFactory {
	return func(ctx context.Context, opts session.Options) (session.Driver, error) {
		if err := d.Errors["launch"]; err != nil {
			return nil, err
		}
		return d, nil
	}
}

// AddElement registers an element at xpath and returns it.
func (d *Driver) AddElement(xpath string) *Element {
	el := &Element{XPath: xpath}
	d.Elements[xpath] = el
	return el
}

func (d *Driver) fail(op string) error {
	if err := d.Errors[op]; err != nil {
		return session.Fail(op, err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, url string) error {
	if err := d.fail("get"); err != nil {
		return err
	}
	d.Visited = append(d.Visited, url)
	d.URL = url
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	return d.URL, d.fail("current_url")
}

func (d *Driver) PageSource() (string, error) {
	return d.Source, d.fail("page_source")
}

func (d *Driver) FindElement(xpath string) (session.Element, error) {
	if err := d.fail("find_element"); err != nil {
		return nil, err
	}
	el, ok := d.Elements[xpath]
	if !ok {
		return nil, session.Fail("find_element", fmt.Errorf("no such element: %s", xpath))
	}
	return el, nil
}

func (d *Driver) FindShadowElement(hostTag, xpath string) (session.Element, error) {
	el, ok := d.ShadowElements[hostTag+"|"+xpath]
	if !ok {
		return nil, session.Fail("find_shadow_element", fmt.Errorf("no such element in %s: %s", hostTag, xpath))
	}
	return el, nil
}

func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) (session.Element, error) {
	el, ok := d.Elements[xpath]
	if !ok {
		return nil, session.Fail("wait_visible", fmt.Errorf("%w: %s not visible after %s", session.ErrTimeout, xpath, timeout))
	}
	return el, nil
}

func (d *Driver) SendKeys(keys string) error {
	if err := d.fail("send_keys"); err != nil {
		return err
	}
	d.Typed = append(d.Typed, keys)
	return nil
}

func (d *Driver) CurrentWindowHandle() (string, error) {
	return d.Current, d.fail("current_window_handle")
}

func (d *Driver) WindowHandles() ([]string, error) {
	return append([]string(nil), d.Handles...), d.fail("window_handles")
}

func (d *Driver) SwitchWindow(handle string) error {
	if err := d.fail("switch_window"); err != nil {
		return err
	}
	for _, h := range d.Handles {
		if h == handle {
			d.Current = handle
			return nil
		}
	}
	return session.Fail("switch_window", fmt.Errorf("no such window: %s", handle))
}

func (d *Driver) SwitchTo(method string, args []any, kwargs map[string]any) (any, error) {
	d.Switches = append(d.Switches, Call{Method: method, Args: args, Kwargs: kwargs})
	return nil, d.fail("switch_to." + method)
}

func (d *Driver) Command(method string, args []any, kwargs map[string]any) (any, error) {
	d.Commands = append(d.Commands, Call{Method: method, Args: args, Kwargs: kwargs})
	if err := d.fail(method); err != nil {
		return nil, err
	}
	if method == "get" && len(args) > 0 {
		d.URL = fmt.Sprint(args[0])
	}
	return nil, nil
}

func (d *Driver) Cookies() ([]map[string]any, error) {
	return d.Jar, d.fail("get_cookies")
}

func (d *Driver) AddCookie(cookie map[string]any) error {
	if err := d.fail("add_cookie"); err != nil {
		return err
	}
	d.Jar = append(d.Jar, cookie)
	return nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	return d.PNG, d.fail("screenshot")
}

func (d *Driver) Authenticate(user, password string) error {
	d.Logins = append(d.Logins, [2]string{user, password})
	return d.fail("authenticate")
}

func (d *Driver) MaximizeWindow() error {
	d.Maximized++
	return d.fail("maximize_window")
}

func (d *Driver) Quit() error {
	d.QuitCount++
	return d.fail("quit")
}

// ErrBoom is a convenient driver error for tests.
var ErrBoom = errors.New("boom")

// CallNames lists the methods recorded on el, in order.
func CallNames(el *Element) string {
	names := make([]string, 0, len(el.Calls))
	for _, c := range el.Calls {
		names = append(names, c.Method)
	}
	return strings.Join(names, ",")
}
