package webdriver

import (
	"fmt"
	"os"

	"github.com/tebeka/selenium"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

type element struct {
	wd selenium.WebDriver
	el selenium.WebElement
}

const propertyScript = `return arguments[0][arguments[1]];`

func (e *element) Call(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	switch method {
	case "click":
		return nil, fail(method, e.el.Click())
	case "send_keys":
		return nil, fail(method, e.el.SendKeys(a.Joined()))
	case "clear":
		return nil, fail(method, e.el.Clear())
	case "submit":
		return nil, fail(method, e.el.Submit())
	case "text":
		v, err := e.el.Text()
		return v, fail(method, err)
	case "tag_name":
		v, err := e.el.TagName()
		return v, fail(method, err)
	case "is_displayed":
		v, err := e.el.IsDisplayed()
		return v, fail(method, err)
	case "is_enabled":
		v, err := e.el.IsEnabled()
		return v, fail(method, err)
	case "is_selected":
		v, err := e.el.IsSelected()
		return v, fail(method, err)
	case "get_attribute", "get_dom_attribute":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.el.GetAttribute(name)
		return v, fail(method, err)
	case "get_property":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.wd.ExecuteScript(propertyScript, []interface{}{e.el, name})
		return v, fail(method, err)
	case "value_of_css_property":
		name, err := a.String(0, "property_name")
		if err != nil {
			return nil, err
		}
		v, err := e.el.CSSProperty(name)
		return v, fail(method, err)
	case "screenshot":
		filename, err := a.String(0, "filename")
		if err != nil {
			return nil, err
		}
		png, err := e.el.Screenshot(true)
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
	return fail("move_to_element", e.el.MoveTo(0, 0))
}
