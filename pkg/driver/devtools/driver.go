// Package devtools drives Chrome over the DevTools protocol with chromedp.
package devtools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

const (
	waitInterval          = 500 * time.Millisecond
	defaultCommandTimeout = 30 * time.Second
)

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Driver implements session.Driver on a chromedp browser. Every tab is a
// chromedp context; the current one receives the commands.
type Driver struct {
	allocCancel context.CancelFunc
	browserCtx  context.Context
	ctx         context.Context
	tabs        map[target.ID]tab
	// frames is the chain of frame XPaths from the top document to the
	// current browsing context.
	frames []string

	pageLoadTimeout time.Duration
	commandTimeout  time.Duration
	implicitWait    time.Duration
	logger          types.Logger

	mu         sync.Mutex
	dialogOpen bool
	promptText string
}

// NewFactory returns a session.DriverFactory that launches Chrome (or attaches
// to opts.DriverURL).
func NewFactory(logger types.Logger) session.DriverFactory {
	return func(ctx context.Context, opts session.Options) (session.Driver, error) {
		return New(ctx, opts, logger)
	}
}

func New(ctx context.Context, opts session.Options, logger types.Logger) (*Driver, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.DriverURL != "" {
		logger.Info().Str("url", opts.DriverURL).Msg("Connecting to remote Chrome")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.DriverURL)
	} else {
		options, err := allocatorOptions(opts)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("Starting Chrome")
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, options...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		logger.Debug().Msgf(format, args...)
	}))
	d := &Driver{
		allocCancel:     allocCancel,
		browserCtx:      browserCtx,
		ctx:             browserCtx,
		tabs:            map[target.ID]tab{},
		pageLoadTimeout: opts.PageLoadTimeout,
		commandTimeout:  defaultCommandTimeout,
		logger:          logger,
	}
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	d.tabs[chromedp.FromContext(browserCtx).Target.TargetID] = tab{ctx: browserCtx, cancel: browserCancel}
	d.listen(browserCtx)

	if opts.DownloadDir != "" {
		behavior := browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).WithDownloadPath(opts.DownloadDir)
		if err := chromedp.Run(browserCtx, behavior); err != nil {
			_ = d.Quit()
			return nil, fmt.Errorf("setting download folder: %w", err)
		}
	}
	if opts.DriverURL != "" && opts.Resolution != "" {
		w, h, err := session.ParseResolution(opts.Resolution)
		if err != nil {
			_ = d.Quit()
			return nil, err
		}
		if err := d.setWindowSize(w, h); err != nil {
			_ = d.Quit()
			return nil, err
		}
	}
	return d, nil
}

func (d *Driver) listen(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *page.EventJavascriptDialogOpening:
			d.mu.Lock()
			d.dialogOpen = true
			d.mu.Unlock()
		case *page.EventJavascriptDialogClosed:
			d.mu.Lock()
			d.dialogOpen = false
			d.promptText = ""
			d.mu.Unlock()
		}
	})
}

// run executes actions on the current tab, bounded by timeout and by ctx.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	return runOn(ctx, d.ctx, timeout, actions...)
}

func runOn(ctx, tabCtx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func evaluate(ctx context.Context, expr string, byValue, await bool) (*runtime.RemoteObject, error) {
	obj, exc, err := runtime.Evaluate(expr).WithReturnByValue(byValue).WithAwaitPromise(await).Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, exc
	}
	return obj, nil
}

func decodeValue(obj *runtime.RemoteObject) (any, error) {
	if obj == nil || len(obj.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(obj.Value, &v); err != nil {
		return nil, fmt.Errorf("decoding script result: %w", err)
	}
	return v, nil
}

func (d *Driver) eval(ctx context.Context, op, expr string, await bool) (any, error) {
	var out any
	err := d.run(ctx, d.commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := evaluate(ctx, expr, true, await)
		if err != nil {
			return err
		}
		out, err = decodeValue(obj)
		return err
	}))
	return out, fail(op, err)
}

// lookup evaluates expr to a DOM node and returns it as an element. A null
// result yields errNotFound.
func (d *Driver) lookup(ctx context.Context, expr string) (*element, error) {
	var id runtime.RemoteObjectID
	err := d.run(ctx, d.commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := evaluate(ctx, expr, false, false)
		if err != nil {
			return err
		}
		id = obj.ObjectID
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errNotFound
	}
	return &element{d: d, ctx: d.ctx, id: id}, nil
}

var errNotFound = errors.New("no such element")

func (d *Driver) Get(ctx context.Context, url string) error {
	return fail("get", d.run(ctx, d.pageLoadTimeout, chromedp.Navigate(url)))
}

func (d *Driver) CurrentURL() (string, error) {
	var u string
	err := d.run(context.Background(), d.commandTimeout, chromedp.Location(&u))
	return u, fail("current_url", err)
}

func (d *Driver) PageSource() (string, error) {
	v, err := d.eval(context.Background(), "page_source", documentExpr(d.frames)+".documentElement.outerHTML", false)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (d *Driver) FindElement(xpath string) (session.Element, error) {
	deadline := time.Now().Add(d.implicitWait)
	for {
		el, err := d.lookup(context.Background(), xpathLookupExpr(d.frames, xpath))
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, errNotFound) || time.Now().After(deadline) {
			return nil, fail("find_element", fmt.Errorf("%w: %s", err, xpath))
		}
		time.Sleep(waitInterval)
	}
}

func (d *Driver) FindShadowElement(hostTag, xpath string) (session.Element, error) {
	el, err := d.lookup(context.Background(), shadowLookupExpr(d.frames, hostTag, xpath))
	if err != nil {
		return nil, fail("find_shadow_element", fmt.Errorf("%w: %s in shadow root of <%s>", err, xpath, hostTag))
	}
	return el, nil
}

func (d *Driver) WaitVisible(ctx context.Context, xpath string, timeout time.Duration) (session.Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		el, err := d.lookup(ctx, xpathLookupExpr(d.frames, xpath))
		if err == nil {
			v, _ := el.call(jsIsDisplayed)
			if visible, _ := v.(bool); visible {
				return el, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
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
	return fail("send_keys", d.run(context.Background(), d.commandTimeout, chromedp.KeyEvent(keys)))
}

func (d *Driver) CurrentWindowHandle() (string, error) {
	c := chromedp.FromContext(d.ctx)
	if c == nil || c.Target == nil {
		return "", session.Fail("current_window_handle", errors.New("no attached tab"))
	}
	return string(c.Target.TargetID), nil
}

func (d *Driver) WindowHandles() ([]string, error) {
	infos, err := chromedp.Targets(d.browserCtx)
	if err != nil {
		return nil, fail("window_handles", err)
	}
	handles := make([]string, 0, len(infos))
	for _, info := range infos {
		if info != nil && info.Type == "page" {
			handles = append(handles, string(info.TargetID))
		}
	}
	return handles, nil
}

func (d *Driver) SwitchWindow(handle string) error {
	id := target.ID(handle)
	if t, ok := d.tabs[id]; ok {
		d.ctx = t.ctx
		d.frames = nil
		return nil
	}
	ctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return fail("switch_to.window", fmt.Errorf("attaching to window %s: %w", handle, err))
	}
	d.listen(ctx)
	d.tabs[id] = tab{ctx: ctx, cancel: cancel}
	d.ctx = ctx
	d.frames = nil
	return nil
}

func (d *Driver) SwitchTo(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	op := "switch_to." + method
	switch method {
	case "frame":
		xpath := ""
		if v, ok := a.Value(-1, "xpath"); ok {
			xpath = fmt.Sprint(v)
		} else if ref, ok := a.Value(0, "frame_reference"); ok {
			xpath = frameXPath(ref)
		} else {
			return nil, fmt.Errorf("%s: missing argument %q", op, "frame_reference")
		}
		if _, err := d.lookup(context.Background(), xpathLookupExpr(d.frames, xpath)); err != nil {
			return nil, fail(op, fmt.Errorf("%w: frame %s", err, xpath))
		}
		d.frames = append(d.frames, xpath)
		return nil, nil
	case "default_content":
		d.frames = nil
		return nil, nil
	case "parent_frame":
		if len(d.frames) > 0 {
			d.frames = d.frames[:len(d.frames)-1]
		}
		return nil, nil
	case "window":
		name, err := a.String(0, "window_name")
		if err != nil {
			return nil, err
		}
		return nil, d.SwitchWindow(name)
	case "active_element":
		el, err := d.lookup(context.Background(), documentExpr(d.frames)+".activeElement")
		return el, fail(op, err)
	case "alert_accept", "alert_dismiss":
		d.mu.Lock()
		text := d.promptText
		d.mu.Unlock()
		handle := page.HandleJavaScriptDialog(method == "alert_accept")
		if text != "" {
			handle = handle.WithPromptText(text)
		}
		return nil, fail(op, d.run(context.Background(), d.commandTimeout, handle))
	case "alert_send_keys":
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.dialogOpen {
			return nil, session.Fail(op, errors.New("no alert open"))
		}
		d.promptText = a.Joined()
		return nil, nil
	}
	return nil, &session.UnsupportedMethodError{Target: "switch_to", Method: method}
}

func (d *Driver) Command(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	ctx := context.Background()
	switch method {
	case "get":
		url, err := a.String(0, "url")
		if err != nil {
			return nil, err
		}
		return nil, d.Get(ctx, url)
	case "back":
		return nil, fail(method, d.run(ctx, d.pageLoadTimeout, chromedp.NavigateBack()))
	case "forward":
		return nil, fail(method, d.run(ctx, d.pageLoadTimeout, chromedp.NavigateForward()))
	case "refresh":
		return nil, fail(method, d.run(ctx, d.pageLoadTimeout, chromedp.Reload()))
	case "execute_script", "execute_async_script":
		script, err := a.String(0, "script")
		if err != nil {
			return nil, err
		}
		async := method == "execute_async_script"
		expr, err := scriptExpr(script, a.Rest(1), async)
		if err != nil {
			return nil, err
		}
		return d.eval(ctx, method, expr, async)
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
		return nil, d.setWindowSize(w, h)
	case "delete_all_cookies":
		return nil, fail(method, d.run(ctx, d.commandTimeout, network.ClearBrowserCookies()))
	case "delete_cookie":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		u, err := d.CurrentURL()
		if err != nil {
			return nil, err
		}
		return nil, fail(method, d.run(ctx, d.commandTimeout, network.DeleteCookies(name).WithURL(u)))
	case "get_cookies":
		return d.Cookies()
	case "close":
		return nil, fail(method, d.run(ctx, d.commandTimeout, page.Close()))
	case "set_page_load_timeout", "set_script_timeout", "implicitly_wait":
		seconds, err := a.Float(0, "time_to_wait")
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(seconds * float64(time.Second))
		switch method {
		case "set_page_load_timeout":
			d.pageLoadTimeout = timeout
		case "set_script_timeout":
			d.commandTimeout = timeout
		default:
			d.implicitWait = timeout
		}
		return nil, nil
	case "title":
		var title string
		err := d.run(ctx, d.commandTimeout, chromedp.Title(&title))
		return title, fail(method, err)
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

func (d *Driver) setWindowSize(w, h int) error {
	return fail("set_window_size", d.setWindowBounds(&browser.Bounds{
		Width:       int64(w),
		Height:      int64(h),
		WindowState: browser.WindowStateNormal,
	}))
}

func (d *Driver) setWindowBounds(bounds *browser.Bounds) error {
	return d.run(context.Background(), d.commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			return err
		}
		return browser.SetWindowBounds(windowID, bounds).Do(ctx)
	}))
}

func (d *Driver) Cookies() ([]map[string]any, error) {
	var cookies []*network.Cookie
	err := d.run(context.Background(), d.commandTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
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
	u, err := d.CurrentURL()
	if err != nil {
		return err
	}
	params, err := toSetCookie(cookie, u)
	if err != nil {
		return err
	}
	return fail("add_cookie", d.run(context.Background(), d.commandTimeout, params))
}

func (d *Driver) Screenshot() ([]byte, error) {
	var png []byte
	err := d.run(context.Background(), d.commandTimeout, chromedp.CaptureScreenshot(&png))
	return png, fail("screenshot", err)
}

// Authenticate answers HTTP basic auth by sending the credentials with every
// request of the tab and reloading the page.
func (d *Driver) Authenticate(user, password string) error {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	err := d.run(context.Background(), d.pageLoadTimeout,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}),
		chromedp.Reload(),
	)
	return fail("authenticate", err)
}

func (d *Driver) MaximizeWindow() error {
	return fail("maximize_window", d.setWindowBounds(&browser.Bounds{WindowState: browser.WindowStateMaximized}))
}

func (d *Driver) Quit() error {
	for id, t := range d.tabs {
		if t.ctx != d.browserCtx {
			t.cancel()
		}
		delete(d.tabs, id)
	}
	err := chromedp.Cancel(d.browserCtx)
	d.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fail("quit", err)
	}
	return nil
}
