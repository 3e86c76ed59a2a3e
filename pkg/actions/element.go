package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// GenericElementAction locates an element by XPath and invokes one of its methods.
type GenericElementAction struct {
	XPath      string         `mapstructure:"xpath"`
	MethodName string         `mapstructure:"method_name"`
	Kwargs     map[string]any `mapstructure:",remain"`
	Args       []any          `mapstructure:"-"`
}

func (a *GenericElementAction) validate() error {
	if err := required("xpath", a.XPath); err != nil {
		return err
	}
	return required("method_name", a.MethodName)
}

func (a *GenericElementAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	el, err := env.Driver.FindElement(a.XPath)
	if err != nil {
		return Outcome{}, err
	}
	value, err := el.Call(a.MethodName, a.Args, a.Kwargs)
	if err != nil {
		return Outcome{}, err
	}
	env.Logger.Debug().Str("xpath", a.XPath).Str("method", a.MethodName).Msg("Element method invoked")
	return Outcome{Element: el, Value: value}, nil
}

// GenericShadowDomElementAction is GenericElementAction inside the shadow root
// of the first element with the ShadowParent tag.
type GenericShadowDomElementAction struct {
	XPath        string         `mapstructure:"xpath"`
	MethodName   string         `mapstructure:"method_name"`
	ShadowParent string         `mapstructure:"shadow_parent_element"`
	Kwargs       map[string]any `mapstructure:",remain"`
	Args         []any          `mapstructure:"-"`
}

func (a *GenericShadowDomElementAction) validate() error {
	if err := required("xpath", a.XPath); err != nil {
		return err
	}
	if err := required("method_name", a.MethodName); err != nil {
		return err
	}
	return required("shadow_parent_element", a.ShadowParent)
}

func (a *GenericShadowDomElementAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	el, err := env.Driver.FindShadowElement(a.ShadowParent, a.XPath)
	if err != nil {
		return Outcome{}, err
	}
	value, err := el.Call(a.MethodName, a.Args, a.Kwargs)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Element: el, Value: value}, nil
}

// MoveToElement hovers the pointer over an element.
type MoveToElement struct {
	XPath string `mapstructure:"xpath"`
}

func (a *MoveToElement) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	el, err := env.Driver.FindElement(a.XPath)
	if err != nil {
		return Outcome{}, err
	}
	if err := el.MoveTo(); err != nil {
		return Outcome{}, session.Fail("move_to_element", err)
	}
	return Outcome{Element: el}, nil
}

// WaitForElement polls until the element is visible or Delay seconds pass.
type WaitForElement struct {
	XPath string `mapstructure:"xpath"`
	Delay int    `mapstructure:"delay"`
}

func (a *WaitForElement) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	timeout := time.Duration(a.Delay) * time.Second
	env.Logger.Debug().Str("xpath", a.XPath).Str("timeout", timeout.String()).Msg("Waiting for element")
	el, err := env.Driver.WaitVisible(ctx, a.XPath, timeout)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Element: el}, nil
}

// TypeText sends keys to whatever element has focus.
type TypeText struct {
	Args []any `mapstructure:"-"`
}

func (a *TypeText) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	var keys strings.Builder
	for _, arg := range a.Args {
		keys.WriteString(fmt.Sprint(arg))
	}
	if err := env.Driver.SendKeys(keys.String()); err != nil {
		return Outcome{}, err
	}
	return Outcome{}, nil
}
