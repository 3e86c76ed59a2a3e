// Package playwright drives Chromium through playwright-go.
package playwright

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

const waitInterval = 500 * time.Millisecond

// Driver implements session.Driver on a playwright browser context. Pages
// play the role of windows; handles are assigned in the order pages appear.
type Driver struct {
	pw      *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext

	mu          sync.Mutex
	page        pw.Page
	frame       pw.Frame
	handles     map[pw.Page]string
	nextHandle  int
	dialog      pw.Dialog
	promptText  string
	downloadDir string

	implicitWait time.Duration
	logger       types.Logger
}

func NewFactory(logger types.Logger) session.DriverFactory {
	return func(ctx context.Context, opts session.Options) (session.Driver, error) {
		return New(ctx, opts, logger)
	}
}

// New starts the playwright driver and launches Chromium, or connects to the
// DevTools endpoint in opts.DriverURL.
func New(ctx context.Context, opts session.Options, logger types.Logger) (*Driver, error) {
	runner, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}
	d := &Driver{
		pw:          runner,
		handles:     map[pw.Page]string{},
		downloadDir: opts.DownloadDir,
		logger:      logger,
	}

	if opts.DriverURL != "" {
		logger.Info().Str("url", opts.DriverURL).Msg("Connecting to remote Chromium")
		d.browser, err = runner.Chromium.ConnectOverCDP(opts.DriverURL)
	} else {
		logger.Info().Msg("Launching Chromium")
		d.browser, err = runner.Chromium.Launch(launchOptions(opts))
	}
	if err != nil {
		_ = runner.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	ctxOpts, err := contextOptions(opts)
	if err != nil {
		_ = d.Quit()
		return nil, err
	}
	d.context, err = d.browser.NewContext(ctxOpts)
	if err != nil {
		_ = d.Quit()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}
	d.context.OnPage(d.track)

	page, err := d.context.NewPage()
	if err != nil {
		_ = d.Quit()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	d.track(page)
	d.page = page
	d.frame = page.MainFrame()
	if opts.PageLoadTimeout > 0 {
		d.context.SetDefaultNavigationTimeout(float64(opts.PageLoadTimeout.Milliseconds()))
	}
	return d, nil
}

// track registers a page once: it gets a handle, its dialogs are held for
// the alert commands and its downloads land in the download folder.
func (d *Driver) track(page pw.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handles[page]; ok {
		return
	}
	d.nextHandle++
	d.handles[page] = fmt.Sprintf("page-%d", d.nextHandle)

	page.OnDialog(func(dialog pw.Dialog) {
		d.mu.Lock()
		d.dialog = dialog
		d.mu.Unlock()
	})
	page.OnDownload(func(download pw.Download) {
		if d.downloadDir == "" {
			return
		}
		target := filepath.Join(d.downloadDir, download.SuggestedFilename())
		if err := download.SaveAs(target); err != nil {
			d.logger.Warn().Err(err).Msgf("Failed to save download %q", target)
		}
	})
}

func (d *Driver) Get(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.page.Goto(url)
	return fail("get", err)
}

func (d *Driver) CurrentURL() (string, error) {
	return d.frame.URL(), nil
}

func (d *Driver) PageSource() (string, error) {
	s, err := d.frame.Content()
	return s, fail("page_source", err)
}

func (d *Driver) FindElement(xpath string) (session.Element, error) {
	if d.implicitWait > 0 {
		el, err := d.frame.WaitForSelector(xpathSelector(xpath), pw.FrameWaitForSelectorOptions{
			State:   pw.WaitForSelectorStateAttached,
			Timeout: pw.Float(float64(d.implicitWait.Milliseconds())),
		})
		if err != nil {
			return nil, fail("find_element", err)
		}
		return &element{el: el}, nil
	}
	el, err := d.frame.QuerySelector(xpathSelector(xpath))
	if err != nil {
		return nil, fail("find_element", err)
	}
	if el == nil {
		return nil, session.Fail("find_element", fmt.Errorf("no such element: %s", xpath))
	}
	return &element{el: el}, nil
}

func (d *Driver) FindShadowElement(hostTag, xpath string) (session.Element, error) {
	handle, err := d.frame.EvaluateHandle(shadowLookupExpr(hostTag, xpath))
	if err != nil {
		return nil, fail("find_shadow_element", err)
	}
	el := handle.AsElement()
	if el == nil {
		return nil, session.Fail("find_shadow_element", fmt.Errorf("no element %s in shadow root of <%s>", xpath, hostTag))
	}
	return &element{el: el}, nil
}

func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) (session.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := d.frame.QuerySelector(xpathSelector(xpath))
		if err == nil && el != nil {
			if visible, _ := el.IsVisible(); visible {
				return &element{el: el}, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, session.Fail("wait_visible", fmt.Errorf("%w: element %s not visible after %s", session.ErrTimeout, xpath, timeout))
		}
		if err := session.Sleep(ctx, waitInterval); err != nil {
			return nil, err
		}
	}
}

func (d *Driver) SendKeys(keys string) error {
	return fail("send_keys", d.page.Keyboard().Type(keys))
}

func (d *Driver) CurrentWindowHandle() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[d.page]
	if !ok {
		return "", session.Fail("current_window_handle", errors.New("current page is not tracked"))
	}
	return h, nil
}

func (d *Driver) WindowHandles() ([]string, error) {
	pages := d.context.Pages()
	handles := make([]string, 0, len(pages))
	for _, p := range pages {
		d.track(p)
		d.mu.Lock()
		handles = append(handles, d.handles[p])
		d.mu.Unlock()
	}
	return handles, nil
}

func (d *Driver) SwitchWindow(handle string) error {
	for _, p := range d.context.Pages() {
		d.track(p)
		d.mu.Lock()
		h := d.handles[p]
		d.mu.Unlock()
		if h != handle {
			continue
		}
		d.page = p
		d.frame = p.MainFrame()
		return fail("switch_to.window", p.BringToFront())
	}
	return session.Fail("switch_to.window", fmt.Errorf("no such window: %s", handle))
}

func (d *Driver) SwitchTo(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	op := "switch_to." + method
	switch method {
	case "frame":
		selector := ""
		if v, ok := a.Value(-1, "xpath"); ok {
			selector = xpathSelector(fmt.Sprint(v))
		} else if ref, ok := a.Value(0, "frame_reference"); ok {
			selector = frameSelector(ref)
		} else {
			return nil, fmt.Errorf("%s: missing argument %q", op, "frame_reference")
		}
		el, err := d.frame.QuerySelector(selector)
		if err != nil {
			return nil, fail(op, err)
		}
		if el == nil {
			return nil, session.Fail(op, fmt.Errorf("no such frame: %s", selector))
		}
		frame, err := el.ContentFrame()
		if err != nil {
			return nil, fail(op, err)
		}
		d.frame = frame
		return nil, nil
	case "default_content":
		d.frame = d.page.MainFrame()
		return nil, nil
	case "parent_frame":
		if parent := d.frame.ParentFrame(); parent != nil {
			d.frame = parent
		}
		return nil, nil
	case "window":
		name, err := a.String(0, "window_name")
		if err != nil {
			return nil, err
		}
		return nil, d.SwitchWindow(name)
	case "active_element":
		handle, err := d.frame.EvaluateHandle("() => document.activeElement")
		if err != nil {
			return nil, fail(op, err)
		}
		el := handle.AsElement()
		if el == nil {
			return nil, session.Fail(op, errors.New("no active element"))
		}
		return &element{el: el}, nil
	case "alert_accept", "alert_dismiss", "alert_send_keys":
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.dialog == nil {
			return nil, session.Fail(op, errors.New("no alert open"))
		}
		switch method {
		case "alert_send_keys":
			d.promptText = a.Joined()
			return nil, nil
		case "alert_accept":
			var err error
			if d.promptText != "" {
				err = d.dialog.Accept(d.promptText)
			} else {
				err = d.dialog.Accept()
			}
			d.dialog, d.promptText = nil, ""
			return nil, fail(op, err)
		default:
			err := d.dialog.Dismiss()
			d.dialog, d.promptText = nil, ""
			return nil, fail(op, err)
		}
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
		return nil, d.Get(context.Background(), url)
	case "back":
		_, err := d.page.GoBack()
		return nil, fail(method, err)
	case "forward":
		_, err := d.page.GoForward()
		return nil, fail(method, err)
	case "refresh":
		_, err := d.page.Reload()
		return nil, fail(method, err)
	case "execute_script", "execute_async_script":
		script, err := a.String(0, "script")
		if err != nil {
			return nil, err
		}
		rest := a.Rest(1)
		if rest == nil {
			rest = []any{}
		}
		v, err := d.frame.Evaluate(scriptFunc(script, method == "execute_async_script"), rest)
		return v, fail(method, err)
	case "maximize_window":
		return nil, d.MaximizeWindow()
	case "set_window_size":
		w, err := a.Int(0, "width")
		if err != nil {
			return nil, err
		}
		h, err := a.Int(1, "height")
		if err != nil {
			return nil, err
		}
		return nil, fail(method, d.page.SetViewportSize(w, h))
	case "delete_all_cookies":
		return nil, fail(method, d.context.ClearCookies())
	case "delete_cookie":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		return nil, d.deleteCookie(name)
	case "get_cookies":
		return d.Cookies()
	case "close":
		if err := d.page.Close(); err != nil {
			return nil, fail(method, err)
		}
		if pages := d.context.Pages(); len(pages) > 0 {
			d.page = pages[0]
			d.frame = pages[0].MainFrame()
		}
		return nil, nil
	case "set_page_load_timeout", "set_script_timeout", "implicitly_wait":
		seconds, err := a.Float(0, "time_to_wait")
		if err != nil {
			return nil, err
		}
		ms := seconds * 1000
		switch method {
		case "set_page_load_timeout":
			d.context.SetDefaultNavigationTimeout(ms)
		case "set_script_timeout":
			d.context.SetDefaultTimeout(ms)
		default:
			d.implicitWait = time.Duration(ms) * time.Millisecond
		}
		return nil, nil
	case "title":
		v, err := d.frame.Title()
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

// deleteCookie keeps every other cookie: the context can only clear all of them.
func (d *Driver) deleteCookie(name string) error {
	cookies, err := d.context.Cookies()
	if err != nil {
		return fail("delete_cookie", err)
	}
	var keep []pw.OptionalCookie
	for _, c := range cookies {
		if c.Name == name {
			continue
		}
		oc, err := toOptionalCookie(fromCookie(c), d.page.URL())
		if err != nil {
			return err
		}
		keep = append(keep, oc)
	}
	if err := d.context.ClearCookies(); err != nil {
		return fail("delete_cookie", err)
	}
	if len(keep) == 0 {
		return nil
	}
	return fail("delete_cookie", d.context.AddCookies(keep))
}

func (d *Driver) Cookies() ([]map[string]any, error) {
	cookies, err := d.context.Cookies()
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
	c, err := toOptionalCookie(cookie, d.page.URL())
	if err != nil {
		return err
	}
	return fail("add_cookie", d.context.AddCookies([]pw.OptionalCookie{c}))
}

func (d *Driver) Screenshot() ([]byte, error) {
	png, err := d.page.Screenshot()
	return png, fail("screenshot", err)
}

// Authenticate sends basic auth credentials with every request and reloads.
func (d *Driver) Authenticate(user, password string) error {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	if err := d.context.SetExtraHTTPHeaders(map[string]string{"Authorization": "Basic " + token}); err != nil {
		return fail("authenticate", err)
	}
	_, err := d.page.Reload()
	return fail("authenticate", err)
}

// MaximizeWindow grows the viewport to the available screen size; pages have
// no window of their own to maximize.
func (d *Driver) MaximizeWindow() error {
	v, err := d.page.Evaluate("() => [window.screen.availWidth, window.screen.availHeight]")
	if err != nil {
		return fail("maximize_window", err)
	}
	size, ok := v.([]any)
	if !ok || len(size) != 2 {
		return session.Fail("maximize_window", fmt.Errorf("unexpected screen size %v", v))
	}
	w, h := toInt(size[0]), toInt(size[1])
	if w <= 0 || h <= 0 {
		return session.Fail("maximize_window", fmt.Errorf("unexpected screen size %v", v))
	}
	return fail("maximize_window", d.page.SetViewportSize(w, h))
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func (d *Driver) Quit() error {
	var errs []error
	if d.context != nil {
		errs = append(errs, d.context.Close())
	}
	if d.browser != nil {
		errs = append(errs, d.browser.Close())
	}
	if d.pw != nil {
		errs = append(errs, d.pw.Stop())
	}
	return fail("quit", errors.Join(errs...))
}
