package core

import (
	"context"
	"fmt"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/actions"
	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/metrics"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

// State is the engine state after the last executed action.
type State int

const (
	Running State = iota
	BlockBroken
	ExitRequested
	Finished
)

func (s State) String() string {
	switch s {
	case BlockBroken:
		return "block_broken"
	case ExitRequested:
		return "exit_requested"
	case Finished:
		return "finished"
	default:
		return "running"
	}
}

// RunResult summarizes an engine run that did not fail.
type RunResult struct {
	State       State
	ExitStatus  int
	ExitMessage string
	// Executed counts the actions that completed.
	Executed int
}

// ActionError is a fatal failure of one action. It aborts the run.
type ActionError struct {
	Step        string
	StepIndex   int
	Action      string
	ActionIndex int
	Err         error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("step %d (%q) action %d %s failed: %v", e.StepIndex, e.Step, e.ActionIndex, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

type WorkflowEngine struct {
	Logger  types.Logger
	Metrics *metrics.Metrics
}

func NewWorkflowEngine(logger types.Logger, m *metrics.Metrics) *WorkflowEngine {
	return &WorkflowEngine{Logger: logger, Metrics: m}
}

// ExecutePlan runs the steps in order on an already started session.
func (e *WorkflowEngine) ExecutePlan(ctx context.Context, plan Plan, sess Session) (*RunResult, error) {
	result := &RunResult{State: Running}
	env := sess.Env()

	for si, step := range plan {
		e.Metrics.IncStep()
		if step.Description != "" {
			e.Logger.Info().Msg(step.Description)
		}
		result.State = Running

		for ai, action := range step.Actions {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			scoped := *env
			scoped.Logger = e.Logger.With().Str("step", step.Description).Str("action", action.Name).Logger()
			if action.Description != "" {
				scoped.Logger.Info().Msg(action.Description)
			}

			start := time.Now()
			out, err := action.Execute(ctx, &scoped)
			if err != nil {
				e.Metrics.ObserveAction(action.Name, "error", time.Since(start))
				return result, &ActionError{Step: step.Description, StepIndex: si, Action: action.Name, ActionIndex: ai, Err: err}
			}
			e.Metrics.ObserveAction(action.Name, out.Signal.String(), time.Since(start))
			result.Executed++

			switch out.Signal {
			case actions.BreakBlock:
				result.State = BlockBroken
			case actions.Exit:
				result.State = ExitRequested
				result.ExitStatus = out.Status
				result.ExitMessage = out.Message
			}

			if err := sess.WaitRandom(ctx); err != nil {
				return result, err
			}
			if result.State != Running {
				break
			}
		}

		if result.State == ExitRequested {
			return result, nil
		}
	}

	result.State = Finished
	return result, nil
}

// ExecuteRun drives a whole run: start the session, restore cookies, execute
// the plan, persist cookies. The session is stopped exactly once whatever happens.
func (e *WorkflowEngine) ExecuteRun(ctx context.Context, cfg *Config, plan Plan, sess Session, store StateStore) (result *RunResult, err error) {
	defer func() {
		if stopErr := sess.Stop(); stopErr != nil {
			if err == nil {
				err = stopErr
			} else {
				e.Logger.Warn().Err(stopErr).Msg("Failed to stop browser session")
			}
		}
		switch {
		case err != nil:
			e.Metrics.ObserveRun("failed")
		case result != nil && result.State == ExitRequested:
			e.Metrics.ObserveRun("exit")
		default:
			e.Metrics.ObserveRun("finished")
		}
	}()

	if err := sess.Start(ctx, cfg.StartURL); err != nil {
		return nil, err
	}
	if cfg.MaximizeWindow {
		if err := sess.MaximizeWindow(); err != nil {
			return nil, fmt.Errorf("maximizing window: %w", err)
		}
	}

	if cfg.StoreCookies {
		e.Logger.Info().Msg("Loading cookies from last run")
		state, err := store.ReadState()
		if err != nil {
			return nil, err
		}
		if err := sess.LoadCookies(state.Cookies); err != nil {
			return nil, err
		}
	}

	result, err = e.ExecutePlan(ctx, plan, sess)
	if err != nil {
		return result, err
	}

	if cfg.StoreCookies {
		e.Logger.Info().Msg("Storing cookies for next run")
		cookies, err := sess.Cookies()
		if err != nil {
			return result, fmt.Errorf("reading cookies: %w", err)
		}
		if err := store.WriteState(&kbc.State{Cookies: cookies}); err != nil {
			return result, err
		}
	}

	if result.State == ExitRequested {
		e.Logger.Info().Int("status", result.ExitStatus).Msgf("Run exited: %s", result.ExitMessage)
	} else {
		e.Logger.Info().Msg("Extraction finished")
	}
	return result, nil
}
