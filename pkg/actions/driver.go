package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

var popupPollInterval = 250 * time.Millisecond

// GenericDriverAction dispatches a browser-level command by name.
// Command timeouts (page load, script) are logged and ignored.
type GenericDriverAction struct {
	MethodName string         `mapstructure:"method_name"`
	Kwargs     map[string]any `mapstructure:",remain"`
	Args       []any          `mapstructure:"-"`
}

func (a *GenericDriverAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	value, err := env.Driver.Command(a.MethodName, a.Args, a.Kwargs)
	if errors.Is(err, session.ErrTimeout) {
		env.Logger.Warn().Err(err).Str("method", a.MethodName).Msg("Driver command timed out, continuing")
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Value: value}, nil
}

// DriverSwitchToAction runs one of the switch_to commands (frame, alert, ...).
type DriverSwitchToAction struct {
	MethodName string         `mapstructure:"method_name"`
	Kwargs     map[string]any `mapstructure:",remain"`
	Args       []any          `mapstructure:"-"`
}

func (a *DriverSwitchToAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	value, err := env.Driver.SwitchTo(a.MethodName, a.Args, a.Kwargs)
	if errors.Is(err, session.ErrTimeout) {
		env.Logger.Warn().Err(err).Str("method", a.MethodName).Msg("Switch command timed out, continuing")
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Value: value}, nil
}

// SwitchToWindow switches to the window at Index in handle order.
type SwitchToWindow struct {
	Index int `mapstructure:"index"`
}

func (a *SwitchToWindow) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	handles, err := env.Driver.WindowHandles()
	if err != nil {
		return Outcome{}, err
	}
	if a.Index < 0 || a.Index >= len(handles) {
		return Outcome{}, fmt.Errorf("window or tab with index %d not found, %d open", a.Index, len(handles))
	}
	return Outcome{}, env.Driver.SwitchWindow(handles[a.Index])
}

// SwitchToPopup waits for a window other than the main one and switches to it.
type SwitchToPopup struct {
	Timeout int `mapstructure:"timeout"`
}

func (a *SwitchToPopup) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	timeout := time.Duration(a.Timeout) * time.Second
	deadline := time.Now().Add(timeout)
	for {
		handles, err := env.Driver.WindowHandles()
		if err != nil {
			return Outcome{}, err
		}
		for _, h := range handles {
			if h != env.MainWindow {
				env.Logger.Debug().Str("handle", h).Msg("Switching to popup window")
				return Outcome{}, env.Driver.SwitchWindow(h)
			}
		}
		if !time.Now().Before(deadline) {
			return Outcome{}, &session.TimeoutError{Op: "popup window", Timeout: timeout}
		}
		if err := session.Sleep(ctx, popupPollInterval); err != nil {
			return Outcome{}, err
		}
	}
}

// SwitchToMainWindow returns to the window captured at session start.
type SwitchToMainWindow struct{}

func (a *SwitchToMainWindow) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	return Outcome{}, env.Driver.SwitchWindow(env.MainWindow)
}

// Wait pauses the run.
type Wait struct {
	Seconds float64 `mapstructure:"seconds"`
}

func (a *Wait) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	d := time.Duration(a.Seconds * float64(time.Second))
	env.Logger.Info().Msgf("Waiting for %s", d)
	return Outcome{}, session.Sleep(ctx, d)
}

// BasicLogin answers the browser's HTTP authentication dialog.
type BasicLogin struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

func (a *BasicLogin) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	return Outcome{}, env.Driver.Authenticate(a.User, a.Password)
}
