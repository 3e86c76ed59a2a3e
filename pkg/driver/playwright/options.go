package playwright

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pw "github.com/playwright-community/playwright-go"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

func launchOptions(opts session.Options) pw.BrowserTypeLaunchOptions {
	args := []string{"--no-sandbox", "--disable-features=VizDisplayCompositor"}
	if opts.Headless {
		args = append(args, "--disable-gpu", "--disable-dev-shm-usage")
	}
	args = append(args, opts.ExtraArgs...)

	launch := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(opts.Headless),
		Args:     args,
	}
	if opts.DriverPath != "" {
		launch.ExecutablePath = pw.String(opts.DriverPath)
	}
	if opts.DownloadDir != "" {
		launch.DownloadsPath = pw.String(opts.DownloadDir)
	}
	return launch
}

func contextOptions(opts session.Options) (pw.BrowserNewContextOptions, error) {
	ctxOpts := pw.BrowserNewContextOptions{
		AcceptDownloads: pw.Bool(true),
	}
	if opts.Resolution != "" {
		w, h, err := session.ParseResolution(opts.Resolution)
		if err != nil {
			return ctxOpts, err
		}
		ctxOpts.Viewport = &pw.Size{Width: w, Height: h}
	}
	return ctxOpts, nil
}

func xpathSelector(xpath string) string {
	return "xpath=" + xpath
}

// frameSelector locates a frame element by index or by name/id.
func frameSelector(ref any) string {
	switch v := ref.(type) {
	case int:
		return fmt.Sprintf("xpath=(//iframe|//frame)[%d]", v+1)
	case float64:
		return fmt.Sprintf("xpath=(//iframe|//frame)[%d]", int(v)+1)
	}
	name := fmt.Sprint(ref)
	return fmt.Sprintf(`css=iframe[name=%[1]q], iframe[id=%[1]q], frame[name=%[1]q], frame[id=%[1]q]`, name)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func shadowLookupExpr(hostTag, xpath string) string {
	return fmt.Sprintf("() => {const host = document.getElementsByTagName(%s)[0]; if (!host || !host.shadowRoot) { return null; } return document.evaluate(%s, host.shadowRoot, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;}",
		jsString(hostTag), jsString(xpath))
}

// scriptFunc turns a WebDriver style script body into a function taking the
// argument list.
func scriptFunc(script string, async bool) string {
	if async {
		return fmt.Sprintf("(args) => new Promise((resolve) => { (function(){%s}).apply(null, args.concat([resolve])); })", script)
	}
	return fmt.Sprintf("(args) => (function(){%s}).apply(null, args)", script)
}

func toOptionalCookie(m map[string]any, currentURL string) (pw.OptionalCookie, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return pw.OptionalCookie{}, fmt.Errorf("cookie without a name: %v", m)
	}
	c := pw.OptionalCookie{Name: name, Value: fmt.Sprint(m["value"])}
	domain, _ := m["domain"].(string)
	if domain != "" {
		c.Domain = pw.String(domain)
		path, _ := m["path"].(string)
		if path == "" {
			path = "/"
		}
		c.Path = pw.String(path)
	} else {
		c.URL = pw.String(currentURL)
	}
	if v, ok := m["secure"].(bool); ok {
		c.Secure = pw.Bool(v)
	}
	switch v := m["expiry"].(type) {
	case int:
		if v > 0 {
			c.Expires = pw.Float(float64(v))
		}
	case float64:
		if v > 0 {
			c.Expires = pw.Float(v)
		}
	}
	return c, nil
}

func fromCookie(c pw.Cookie) map[string]any {
	m := map[string]any{
		"name":   c.Name,
		"value":  c.Value,
		"path":   c.Path,
		"domain": c.Domain,
		"secure": c.Secure,
	}
	if c.Expires > 0 {
		m["expiry"] = int(c.Expires)
	}
	return m
}

func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pw.ErrTimeout) || strings.Contains(err.Error(), "Timeout ") {
		return session.Fail(op, fmt.Errorf("%w: %v", session.ErrTimeout, err))
	}
	return session.Fail(op, err)
}
