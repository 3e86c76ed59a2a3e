package webdriver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/arnavsurve/crawlstep/pkg/log"
	"github.com/arnavsurve/crawlstep/pkg/session"
)

// fakeWD implements the parts of selenium.WebDriver the tests touch. Calling
// anything else panics on the nil embedded interface.
type fakeWD struct {
	selenium.WebDriver

	url      string
	cookies  []selenium.Cookie
	resizes  [][2]int
	inner    []interface{}
	result   interface{}
	scripts  []string
	args     [][]interface{}
	alert    string
	accepted int
	getErr   error
}

func (f *fakeWD) Get(url string) error {
	if f.getErr != nil {
		return f.getErr
	}
	f.url = url
	return nil
}

func (f *fakeWD) GetCookies() ([]selenium.Cookie, error) { return f.cookies, nil }

func (f *fakeWD) AddCookie(c *selenium.Cookie) error {
	f.cookies = append(f.cookies, *c)
	return nil
}

func (f *fakeWD) ResizeWindow(name string, w, h int) error {
	f.resizes = append(f.resizes, [2]int{w, h})
	return nil
}

func (f *fakeWD) ExecuteScript(script string, args []interface{}) (interface{}, error) {
	f.scripts = append(f.scripts, script)
	f.args = append(f.args, args)
	if f.result != nil {
		return f.result, nil
	}
	return f.inner, nil
}

// fakeElement implements the element calls exercised by the dispatch tests.
type fakeElement struct {
	selenium.WebElement

	clicks int
	typed  []string
	attrs  map[string]string
	css    map[string]string
}

func (f *fakeElement) Click() error {
	f.clicks++
	return nil
}

func (f *fakeElement) SendKeys(keys string) error {
	f.typed = append(f.typed, keys)
	return nil
}

func (f *fakeElement) Text() (string, error) { return "Sign in", nil }

func (f *fakeElement) GetAttribute(name string) (string, error) { return f.attrs[name], nil }

func (f *fakeElement) CSSProperty(name string) (string, error) { return f.css[name], nil }

func (f *fakeWD) SetAlertText(text string) error {
	f.alert = text
	return nil
}

func (f *fakeWD) AcceptAlert() error {
	f.accepted++
	return nil
}

func TestChromeCapabilities(t *testing.T) {
	caps := chromeCapabilities(session.Options{DownloadDir: "/data/out/tables", Headless: true, ExtraArgs: []string{"--lang=cs"}})
	assert.Equal(t, "chrome", caps["browserName"])

	chromeCaps, ok := caps[chrome.CapabilitiesKey].(chrome.Capabilities)
	require.True(t, ok)
	assert.Contains(t, chromeCaps.Args, "--headless")
	assert.Contains(t, chromeCaps.Args, "--disable-dev-shm-usage")
	assert.Equal(t, "--lang=cs", chromeCaps.Args[len(chromeCaps.Args)-1])
	assert.Equal(t, "/data/out/tables", chromeCaps.Prefs["download.default_directory"])

	chromeCaps = chromeCapabilities(session.Options{})[chrome.CapabilitiesKey].(chrome.Capabilities)
	assert.NotContains(t, chromeCaps.Args, "--headless")
}

func TestReadjustedSize(t *testing.T) {
	w, h := readjustedSize(1920, 1080, 1905, 960)
	assert.Equal(t, 1935, w)
	assert.Equal(t, 1200, h)
}

func TestSetWindowSizeReadjusts(t *testing.T) {
	wd := &fakeWD{inner: []interface{}{float64(1900), float64(1000)}}
	d := NewWithRemote(wd, log.Nop())

	require.NoError(t, d.setWindowSize(1920, 1080))
	assert.Equal(t, [][2]int{{1920, 1080}, {1940, 1160}}, wd.resizes)
}

func TestCookiesRoundTrip(t *testing.T) {
	wd := &fakeWD{}
	d := NewWithRemote(wd, log.Nop())

	require.NoError(t, d.AddCookie(map[string]any{"name": "sid", "value": "abc", "domain": ".example.com", "expiry": 1.7e9, "httpOnly": true}))
	require.Error(t, d.AddCookie(map[string]any{"value": "orphan"}))

	cookies, err := d.Cookies()
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0]["name"])
	assert.Equal(t, ".example.com", cookies[0]["domain"])
	assert.Equal(t, 1700000000, cookies[0]["expiry"])
	assert.NotContains(t, cookies[0], "httpOnly")
}

func TestCommandDispatch(t *testing.T) {
	wd := &fakeWD{}
	d := NewWithRemote(wd, log.Nop())

	_, err := d.Command("get", []any{"https://example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", wd.url)

	_, err = d.Command("set_window_size", nil, map[string]any{"width": 800, "height": "600"})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{800, 600}}, wd.resizes)

	_, err = d.Command("teleport", nil, nil)
	var unsupported *session.UnsupportedMethodError
	require.True(t, errors.As(err, &unsupported))
	assert.False(t, session.IsDriverFailure(err))

	_, err = d.Command("get", nil, nil)
	require.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	wd := &fakeWD{getErr: &selenium.Error{Err: "timeout", Message: "page load"}}
	d := NewWithRemote(wd, log.Nop())

	err := d.Get(context.Background(), "https://slow.example.com")
	require.Error(t, err)
	assert.True(t, session.IsDriverFailure(err))
	assert.ErrorIs(t, err, session.ErrTimeout)

	wd.getErr = &selenium.Error{Err: "unknown error", Message: "net::ERR_NAME_NOT_RESOLVED"}
	err = d.Get(context.Background(), "https://nowhere.invalid")
	require.Error(t, err)
	assert.True(t, session.IsDriverFailure(err))
	assert.NotErrorIs(t, err, session.ErrTimeout)
}

func TestAuthenticate(t *testing.T) {
	wd := &fakeWD{}
	d := NewWithRemote(wd, log.Nop())

	require.NoError(t, d.Authenticate("jdoe", "secret"))
	assert.Equal(t, "jdoe"+selenium.TabKey+"secret", wd.alert)
	assert.Equal(t, 1, wd.accepted)
}

func TestElementDispatch(t *testing.T) {
	wd := &fakeWD{result: "https://example.com/next"}
	fe := &fakeElement{attrs: map[string]string{"href": "/next"}, css: map[string]string{"color": "red"}}
	el := &element{wd: wd, el: fe}

	_, err := el.Call("click", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fe.clicks)

	_, err = el.Call("send_keys", []any{"jd", "oe"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"jdoe"}, fe.typed)

	v, err := el.Call("text", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Sign in", v)

	v, err = el.Call("get_attribute", []any{"href"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/next", v)

	v, err = el.Call("value_of_css_property", nil, map[string]any{"property_name": "color"})
	require.NoError(t, err)
	assert.Equal(t, "red", v)

	v, err = el.Call("get_property", nil, map[string]any{"name": "href"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/next", v)
	require.Len(t, wd.scripts, 1)
	assert.Equal(t, propertyScript, wd.scripts[0])
	assert.Equal(t, []interface{}{fe, "href"}, wd.args[0])

	_, err = el.Call("get_property", nil, nil)
	require.Error(t, err)

	_, err = el.Call("levitate", nil, nil)
	var unsupported *session.UnsupportedMethodError
	require.True(t, errors.As(err, &unsupported))
}
