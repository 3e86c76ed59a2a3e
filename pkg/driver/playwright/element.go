package playwright

import (
	"fmt"
	"os"

	pw "github.com/playwright-community/playwright-go"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

type element struct {
	el pw.ElementHandle
}

func (e *element) eval(fn string, arg ...any) (any, error) {
	return e.el.Evaluate(fn, arg...)
}

func (e *element) Call(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	switch method {
	case "click":
		return nil, fail(method, e.el.Click())
	case "send_keys":
		if err := e.el.Focus(); err != nil {
			return nil, fail(method, err)
		}
		return nil, fail(method, e.el.Type(a.Joined()))
	case "clear":
		return nil, fail(method, e.el.Fill(""))
	case "submit":
		_, err := e.eval(`el => { const f = el.form || el; if (f.requestSubmit) { f.requestSubmit(); } else { f.submit(); } }`)
		return nil, fail(method, err)
	case "text":
		v, err := e.el.InnerText()
		return v, fail(method, err)
	case "tag_name":
		v, err := e.eval(`el => el.tagName.toLowerCase()`)
		return v, fail(method, err)
	case "is_displayed":
		v, err := e.el.IsVisible()
		return v, fail(method, err)
	case "is_enabled":
		v, err := e.el.IsEnabled()
		return v, fail(method, err)
	case "is_selected":
		v, err := e.eval(`el => !!(el.checked || el.selected)`)
		return v, fail(method, err)
	case "get_attribute", "get_dom_attribute":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.eval(`(el, name) => el.getAttribute(name)`, name)
		return v, fail(method, err)
	case "get_property":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.eval(`(el, name) => { const v = el[name]; return (v === undefined || typeof v === 'object' || typeof v === 'function') ? null : v; }`, name)
		return v, fail(method, err)
	case "value_of_css_property":
		name, err := a.String(0, "property_name")
		if err != nil {
			return nil, err
		}
		v, err := e.eval(`(el, name) => window.getComputedStyle(el).getPropertyValue(name)`, name)
		return v, fail(method, err)
	case "screenshot":
		filename, err := a.String(0, "filename")
		if err != nil {
			return nil, err
		}
		png, err := e.el.Screenshot()
		if err != nil {
			return nil, fail(method, err)
		}
		if err := os.WriteFile(filename, png, 0o644); err != nil {
			return nil, fmt.Errorf("writing element screenshot %q: %w", filename, err)
		}
		return true, nil
	}
	return nil, &session.UnsupportedMethodError{Target: "element", Method: method}
}

func (e *element) MoveTo() error {
	return fail("move_to_element", e.el.Hover())
}
