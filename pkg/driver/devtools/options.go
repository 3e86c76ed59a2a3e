package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// allocatorOptions mirrors the Chrome flags of the webdriver backend on top of
// chromedp's defaults.
func allocatorOptions(opts session.Options) ([]chromedp.ExecAllocatorOption, error) {
	options := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-features", "VizDisplayCompositor"),
	)
	if opts.Headless {
		options = append(options, chromedp.DisableGPU, chromedp.Flag("disable-dev-shm-usage", true))
	}
	if opts.DriverPath != "" {
		options = append(options, chromedp.ExecPath(opts.DriverPath))
	}
	if opts.Resolution != "" {
		w, h, err := session.ParseResolution(opts.Resolution)
		if err != nil {
			return nil, err
		}
		options = append(options, chromedp.WindowSize(w, h))
	}
	for _, arg := range opts.ExtraArgs {
		name, value := splitFlag(arg)
		if name == "" {
			continue
		}
		options = append(options, chromedp.Flag(name, value))
	}
	return options, nil
}

// splitFlag turns "--name=value" into ("name", "value") and "--name" into ("name", true).
func splitFlag(arg string) (string, any) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return name, true
	}
	return name, value
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// frameXPath locates a frame by index or by name/id, like switch_to.frame.
func frameXPath(ref any) string {
	switch v := ref.(type) {
	case int:
		return fmt.Sprintf("(//iframe|//frame)[%d]", v+1)
	case float64:
		return fmt.Sprintf("(//iframe|//frame)[%d]", int(v)+1)
	}
	name := xpathLiteral(fmt.Sprint(ref))
	return fmt.Sprintf("(//iframe|//frame)[@name=%s or @id=%s]", name, name)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// documentExpr returns the JS expression of the document the given frame
// chain points to. Only same-origin frames are reachable this way.
func documentExpr(frames []string) string {
	expr := "document"
	for _, xp := range frames {
		expr = fmt.Sprintf("document.evaluate(%s, %s, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue.contentDocument", jsString(xp), expr)
	}
	return expr
}

func xpathLookupExpr(frames []string, xpath string) string {
	doc := documentExpr(frames)
	return fmt.Sprintf("(function(){var doc=%s;return document.evaluate(%s, doc, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;})()", doc, jsString(xpath))
}

func shadowLookupExpr(frames []string, hostTag, xpath string) string {
	doc := documentExpr(frames)
	return fmt.Sprintf("(function(){var host=%s.getElementsByTagName(%s)[0];if(!host||!host.shadowRoot){return null;}return document.evaluate(%s, host.shadowRoot, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;})()",
		doc, jsString(hostTag), jsString(xpath))
}

// scriptExpr wraps a WebDriver style script body (using return and
// arguments) into an evaluable expression.
func scriptExpr(script string, args []any, async bool) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding script arguments: %w", err)
	}
	if async {
		return fmt.Sprintf("new Promise(function(resolve){(function(){%s}).apply(null, %s.concat([resolve]));})", script, encoded), nil
	}
	return fmt.Sprintf("(function(){%s}).apply(null, %s)", script, encoded), nil
}

func quadCenter(q []float64) (float64, float64) {
	if len(q) < 8 {
		return 0, 0
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4
}

func toSetCookie(m map[string]any, currentURL string) (*network.SetCookieParams, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("cookie without a name: %v", m)
	}
	p := network.SetCookie(name, fmt.Sprint(m["value"]))
	if v, ok := m["domain"].(string); ok && v != "" {
		p = p.WithDomain(v)
	} else {
		p = p.WithURL(currentURL)
	}
	if v, ok := m["path"].(string); ok && v != "" {
		p = p.WithPath(v)
	}
	if v, ok := m["secure"].(bool); ok {
		p = p.WithSecure(v)
	}
	var expiry float64
	switch v := m["expiry"].(type) {
	case int:
		expiry = float64(v)
	case float64:
		expiry = v
	}
	if expiry > 0 {
		ts := cdp.TimeSinceEpoch(time.Unix(int64(math.Round(expiry)), 0))
		p = p.WithExpires(&ts)
	}
	return p, nil
}

func fromCookie(c *network.Cookie) map[string]any {
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

// fail maps deadline errors to session.ErrTimeout. Cancellation is passed
// through so it is never mistaken for a browser failure.
func fail(op string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return session.Fail(op, fmt.Errorf("%w: %v", session.ErrTimeout, err))
	}
	return session.Fail(op, err)
}
