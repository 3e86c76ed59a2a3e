// Package webdriver drives Chrome through chromedriver using the W3C WebDriver protocol.
package webdriver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tebeka/selenium"

	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

const waitInterval = 500 * time.Millisecond

// Driver implements session.Driver on a selenium.WebDriver.
type Driver struct {
	wd      selenium.WebDriver
	service *selenium.Service
	logger  types.Logger
}

// NewFactory returns a session.DriverFactory that launches Chrome.
func NewFactory(logger types.Logger) session.DriverFactory {
	return func(ctx context.Context, opts session.Options) (session.Driver, error) {
		return New(ctx, opts, logger)
	}
}

// New starts chromedriver (or connects to opts.DriverURL) and opens a Chrome session.
func New(ctx context.Context, opts session.Options, logger types.Logger) (*Driver, error) {
	caps := chromeCapabilities(opts)

	d := &Driver{logger: logger}
	urlPrefix := opts.DriverURL
	if urlPrefix == "" {
		path, err := findChromeDriver(opts.DriverPath)
		if err != nil {
			return nil, err
		}
		port, err := freePort()
		if err != nil {
			return nil, err
		}
		logger.Info().Str("chromedriver", path).Int("port", port).Msg("Starting chromedriver")
		d.service, err = selenium.NewChromeDriverService(path, port)
		if err != nil {
			return nil, fmt.Errorf("starting chromedriver: %w", err)
		}
		urlPrefix = fmt.Sprintf("http://localhost:%d/wd/hub", port)
	}

	wd, err := selenium.NewRemote(caps, urlPrefix)
	if err != nil {
		if d.service != nil {
			_ = d.service.Stop()
		}
		return nil, fmt.Errorf("creating webdriver session: %w", err)
	}
	d.wd = wd

	if err := d.configure(opts); err != nil {
		_ = d.Quit()
		return nil, err
	}
	return d, nil
}

// NewWithRemote wraps an existing selenium session.
func NewWithRemote(wd selenium.WebDriver, logger types.Logger) *Driver {
	return &Driver{wd: wd, logger: logger}
}

func (d *Driver) configure(opts session.Options) error {
	if opts.PageLoadTimeout > 0 {
		if err := d.wd.SetPageLoadTimeout(opts.PageLoadTimeout); err != nil {
			return fmt.Errorf("setting page load timeout: %w", err)
		}
		if err := d.wd.SetAsyncScriptTimeout(opts.PageLoadTimeout); err != nil {
			return fmt.Errorf("setting script timeout: %w", err)
		}
	}
	if opts.Resolution == "" {
		return nil
	}
	w, h, err := session.ParseResolution(opts.Resolution)
	if err != nil {
		return err
	}
	return d.setWindowSize(w, h)
}

// setWindowSize resizes the window so that the viewport, not the outer
// window, ends up at w x h.
func (d *Driver) setWindowSize(w, h int) error {
	if err := d.wd.ResizeWindow("", w, h); err != nil {
		return fail("set_window_size", err)
	}
	raw, err := d.wd.ExecuteScript("return [window.innerWidth, window.innerHeight];", nil)
	if err != nil {
		return fail("execute_script", err)
	}
	inner, ok := raw.([]interface{})
	if !ok || len(inner) != 2 {
		return fmt.Errorf("unexpected viewport size %v", raw)
	}
	innerW, _ := inner[0].(float64)
	innerH, _ := inner[1].(float64)
	rw, rh := readjustedSize(w, h, int(innerW), int(innerH))
	d.logger.Info().Msgf("Chrome window set to %dx%d, actual size is %dx%d, readjusting to %dx%d", w, h, int(innerW), int(innerH), rw, rh)
	return fail("set_window_size", d.wd.ResizeWindow("", rw, rh))
}

func (d *Driver) Get(ctx context.Context, url string) error {
	return fail("get", d.wd.Get(url))
}

func (d *Driver) CurrentURL() (string, error) {
	u, err := d.wd.CurrentURL()
	return u, fail("current_url", err)
}

func (d *Driver) PageSource() (string, error) {
	s, err := d.wd.PageSource()
	return s, fail("page_source", err)
}

func (d *Driver) FindElement(xpath string) (session.Element, error) {
	el, err := d.wd.FindElement(selenium.ByXPATH, xpath)
	if err != nil {
		return nil, fail("find_element", err)
	}
	return &element{wd: d.wd, el: el}, nil
}

const shadowLookupScript = `
var host = document.getElementsByTagName(arguments[0])[0];
if (!host || !host.shadowRoot) { return null; }
return document.evaluate(arguments[1], host.shadowRoot, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
`

func (d *Driver) FindShadowElement(hostTag, xpath string) (session.Element, error) {
	raw, err := d.wd.ExecuteScriptRaw(shadowLookupScript, []interface{}{hostTag, xpath})
	if err != nil {
		return nil, fail("find_shadow_element", err)
	}
	el, err := d.wd.DecodeElement(raw)
	if err != nil {
		return nil, session.Fail("find_shadow_element", fmt.Errorf("no element %s in shadow root of <%s>: %w", xpath, hostTag, err))
	}
	return &element{wd: d.wd, el: el}, nil
}

func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) (session.Element, error) {
	var found selenium.WebElement
	condition := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		el, err := wd.FindElement(selenium.ByXPATH, xpath)
		if err != nil {
			return false, nil
		}
		if visible, err := el.IsDisplayed(); err != nil || !visible {
			return false, nil
		}
		found = el
		return true, nil
	}
	if err := d.wd.WaitWithTimeoutAndInterval(condition, timeout, waitInterval); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, session.Fail("wait_visible", fmt.Errorf("%w: element %s not visible after %s", session.ErrTimeout, xpath, timeout))
	}
	return &element{wd: d.wd, el: found}, nil
}

func (d *Driver) SendKeys(keys string) error {
	active, err := d.wd.ActiveElement()
	if err != nil {
		return fail("send_keys", err)
	}
	return fail("send_keys", active.SendKeys(keys))
}

func (d *Driver) CurrentWindowHandle() (string, error) {
	h, err := d.wd.CurrentWindowHandle()
	return h, fail("current_window_handle", err)
}

func (d *Driver) WindowHandles() ([]string, error) {
	hs, err := d.wd.WindowHandles()
	return hs, fail("window_handles", err)
}

func (d *Driver) SwitchWindow(handle string) error {
	return fail("switch_to.window", d.wd.SwitchWindow(handle))
}

func (d *Driver) SwitchTo(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	op := "switch_to." + method
	switch method {
	case "frame":
		if xpath, ok := a.Value(-1, "xpath"); ok {
			el, err := d.wd.FindElement(selenium.ByXPATH, fmt.Sprint(xpath))
			if err != nil {
				return nil, fail(op, err)
			}
			return nil, fail(op, d.wd.SwitchFrame(el))
		}
		ref, ok := a.Value(0, "frame_reference")
		if !ok {
			return nil, fmt.Errorf("%s: missing argument %q", op, "frame_reference")
		}
		switch v := ref.(type) {
		case int:
			return nil, fail(op, d.wd.SwitchFrame(v))
		case float64:
			return nil, fail(op, d.wd.SwitchFrame(int(v)))
		default:
			return nil, fail(op, d.wd.SwitchFrame(fmt.Sprint(v)))
		}
	case "default_content":
		return nil, fail(op, d.wd.SwitchFrame(nil))
	case "window":
		name, err := a.String(0, "window_name")
		if err != nil {
			return nil, err
		}
		return nil, fail(op, d.wd.SwitchWindow(name))
	case "active_element":
		el, err := d.wd.ActiveElement()
		if err != nil {
			return nil, fail(op, err)
		}
		return &element{wd: d.wd, el: el}, nil
	case "alert_accept":
		return nil, fail(op, d.wd.AcceptAlert())
	case "alert_dismiss":
		return nil, fail(op, d.wd.DismissAlert())
	case "alert_send_keys":
		return nil, fail(op, d.wd.SetAlertText(a.Joined()))
	}
	return nil, &session.UnsupportedMethodError{Target: "switch_to", Method: method}
}

func (d *Driver) Command(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	switch method {
	case "get":
		url, err := a.String(0, "url")
		if err != nil {
			return nil, err
		}
		return nil, fail(method, d.wd.Get(url))
	case "back":
		return nil, fail(method, d.wd.Back())
	case "forward":
		return nil, fail(method, d.wd.Forward())
	case "refresh":
		return nil, fail(method, d.wd.Refresh())
	case "execute_script", "execute_async_script":
		script, err := a.String(0, "script")
		if err != nil {
			return nil, err
		}
		if method == "execute_async_script" {
			v, err := d.wd.ExecuteScriptAsync(script, a.Rest(1))
			return v, fail(method, err)
		}
		v, err := d.wd.ExecuteScript(script, a.Rest(1))
		return v, fail(method, err)
	case "maximize_window":
		return nil, fail(method, d.wd.MaximizeWindow(""))
	case "set_window_size":
		w, err := a.Int(0, "width")
		if err != nil {
			return nil, err
		}
		h, err := a.Int(1, "height")
		if err != nil {
			return nil, err
		}
		return nil, fail(method, d.wd.ResizeWindow("", w, h))
	case "delete_all_cookies":
		return nil, fail(method, d.wd.DeleteAllCookies())
	case "delete_cookie":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		return nil, fail(method, d.wd.DeleteCookie(name))
	case "get_cookies":
		return d.Cookies()
	case "close":
		handle, err := d.wd.CurrentWindowHandle()
		if err != nil {
			return nil, fail(method, err)
		}
		return nil, fail(method, d.wd.CloseWindow(handle))
	case "set_page_load_timeout", "set_script_timeout", "implicitly_wait":
		seconds, err := a.Float(0, "time_to_wait")
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(seconds * float64(time.Second))
		switch method {
		case "set_page_load_timeout":
			return nil, fail(method, d.wd.SetPageLoadTimeout(timeout))
		case "set_script_timeout":
			return nil, fail(method, d.wd.SetAsyncScriptTimeout(timeout))
		default:
			return nil, fail(method, d.wd.SetImplicitWaitTimeout(timeout))
		}
	case "title":
		v, err := d.wd.Title()
		return v, fail(method, err)
	case "current_url":
		return d.CurrentURL()
	case "page_source":
		return d.PageSource()
	case "save_screenshot", "get_screenshot_as_file":
		filename, err := a.String(0, "filename")
		if err != nil {
			return nil, err
		}
		png, err := d.Screenshot()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filename, png, 0o644); err != nil {
			return nil, fmt.Errorf("writing screenshot %q: %w", filename, err)
		}
		return true, nil
	}
	return nil, &session.UnsupportedMethodError{Target: "driver", Method: method}
}

func (d *Driver) Cookies() ([]map[string]any, error) {
	cookies, err := d.wd.GetCookies()
	if err != nil {
		return nil, fail("get_cookies", err)
	}
	out := make([]map[string]any, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, fromCookie(c))
	}
	return out, nil
}

func (d *Driver) AddCookie(cookie map[string]any) error {
	c, err := toCookie(cookie)
	if err != nil {
		return err
	}
	return fail("add_cookie", d.wd.AddCookie(c))
}

func (d *Driver) Screenshot() ([]byte, error) {
	png, err := d.wd.Screenshot()
	return png, fail("screenshot", err)
}

// Authenticate fills the HTTP auth dialog: user, tab, password, accept.
func (d *Driver) Authenticate(user, password string) error {
	if err := d.wd.SetAlertText(user + selenium.TabKey + password); err != nil {
		return fail("authenticate", err)
	}
	return fail("authenticate", d.wd.AcceptAlert())
}

func (d *Driver) MaximizeWindow() error {
	return fail("maximize_window", d.wd.MaximizeWindow(""))
}

func (d *Driver) Quit() error {
	var err error
	if d.wd != nil {
		err = d.wd.Quit()
	}
	if d.service != nil {
		if stopErr := d.service.Stop(); err == nil {
			err = stopErr
		}
	}
	return fail("quit", err)
}
