package devtools

import (
	"context"
	"fmt"
	"os"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

const (
	jsIsDisplayed  = `function(){var s=window.getComputedStyle(this);return !!(this.offsetWidth||this.offsetHeight||this.getClientRects().length)&&s.visibility!=='hidden';}`
	jsDocumentRect = `function(){var r=this.getBoundingClientRect();return [r.left+window.scrollX,r.top+window.scrollY,r.width,r.height];}`
)

// element is a DOM node held by its remote object id. It stays valid until
// the page navigates away.
type element struct {
	d   *Driver
	ctx context.Context
	id  runtime.RemoteObjectID
}

func (e *element) run(actions ...chromedp.Action) error {
	return runOn(context.Background(), e.ctx, e.d.commandTimeout, actions...)
}

// call runs fn with the node bound to this and returns its JSON result.
func (e *element) call(fn string) (any, error) {
	var out any
	err := e.run(chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(fn).WithObjectID(e.id).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		out, err = decodeValue(res)
		return err
	}))
	return out, err
}

func (e *element) center(ctx context.Context) (float64, float64, error) {
	if err := dom.ScrollIntoViewIfNeeded().WithObjectID(e.id).Do(ctx); err != nil {
		return 0, 0, err
	}
	box, err := dom.GetBoxModel().WithObjectID(e.id).Do(ctx)
	if err != nil {
		return 0, 0, err
	}
	x, y := quadCenter(box.Content)
	return x, y, nil
}

func (e *element) click() error {
	return e.run(chromedp.ActionFunc(func(ctx context.Context) error {
		x, y, err := e.center(ctx)
		if err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1).Do(ctx)
	}))
}

func (e *element) sendKeys(keys string) error {
	return e.run(chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.Focus().WithObjectID(e.id).Do(ctx); err != nil {
			return err
		}
		return chromedp.KeyEvent(keys).Do(ctx)
	}))
}

func (e *element) screenshot() ([]byte, error) {
	var png []byte
	err := e.run(chromedp.ActionFunc(func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithObjectID(e.id).Do(ctx); err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(jsDocumentRect).WithObjectID(e.id).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		v, err := decodeValue(res)
		if err != nil {
			return err
		}
		rect, ok := v.([]any)
		if !ok || len(rect) != 4 {
			return fmt.Errorf("unexpected element rect %v", v)
		}
		clip := &page.Viewport{Scale: 1}
		clip.X, _ = rect[0].(float64)
		clip.Y, _ = rect[1].(float64)
		clip.Width, _ = rect[2].(float64)
		clip.Height, _ = rect[3].(float64)
		png, err = page.CaptureScreenshot().WithClip(clip).WithCaptureBeyondViewport(true).Do(ctx)
		return err
	}))
	return png, err
}

func (e *element) Call(method string, args []any, kwargs map[string]any) (any, error) {
	a := session.Arguments{Method: method, Args: args, Kwargs: kwargs}
	switch method {
	case "click":
		return nil, fail(method, e.click())
	case "send_keys":
		return nil, fail(method, e.sendKeys(a.Joined()))
	case "clear":
		_, err := e.call(`function(){this.value='';this.dispatchEvent(new Event('input',{bubbles:true}));this.dispatchEvent(new Event('change',{bubbles:true}));}`)
		return nil, fail(method, err)
	case "submit":
		_, err := e.call(`function(){var f=this.form||this;if(f.requestSubmit){f.requestSubmit();}else{f.submit();}}`)
		return nil, fail(method, err)
	case "text":
		v, err := e.call(`function(){return this.innerText;}`)
		return v, fail(method, err)
	case "tag_name":
		v, err := e.call(`function(){return this.tagName.toLowerCase();}`)
		return v, fail(method, err)
	case "is_displayed":
		v, err := e.call(jsIsDisplayed)
		return v, fail(method, err)
	case "is_enabled":
		v, err := e.call(`function(){return !this.disabled;}`)
		return v, fail(method, err)
	case "is_selected":
		v, err := e.call(`function(){return !!(this.checked||this.selected);}`)
		return v, fail(method, err)
	case "get_attribute", "get_dom_attribute":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.call(fmt.Sprintf(`function(){return this.getAttribute(%s);}`, jsString(name)))
		return v, fail(method, err)
	case "get_property":
		name, err := a.String(0, "name")
		if err != nil {
			return nil, err
		}
		v, err := e.call(fmt.Sprintf(`function(){var v=this[%s];return (v===undefined||typeof v==='object'||typeof v==='function')?null:v;}`, jsString(name)))
		return v, fail(method, err)
	case "value_of_css_property":
		name, err := a.String(0, "property_name")
		if err != nil {
			return nil, err
		}
		v, err := e.call(fmt.Sprintf(`function(){return window.getComputedStyle(this).getPropertyValue(%s);}`, jsString(name)))
		return v, fail(method, err)
	case "screenshot":
		filename, err := a.String(0, "filename")
		if err != nil {
			return nil, err
		}
		png, err := e.screenshot()
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
	err := e.run(chromedp.ActionFunc(func(ctx context.Context) error {
		x, y, err := e.center(ctx)
		if err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
	return fail("move_to_element", err)
}
