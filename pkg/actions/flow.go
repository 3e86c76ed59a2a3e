package actions

import (
	"context"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// BreakBlockExecution skips the rest of the current step.
type BreakBlockExecution struct{}

func (a *BreakBlockExecution) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	env.Logger.Info().Msg("Breaking block execution, switching to next step")
	return Outcome{Signal: BreakBlock}, nil
}

// ExitAction stops the run with a status and message.
type ExitAction struct {
	Status  int    `mapstructure:"status"`
	Message string `mapstructure:"message"`
}

func (a *ExitAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	event := env.Logger.Info()
	if a.Status >= 1 {
		event = env.Logger.Error()
	}
	event.Int("status", a.Status).Msgf("Exiting: %s", a.Message)
	return Outcome{Signal: Exit, Status: a.Status, Message: a.Message}, nil
}

// ConditionalAction runs Test and then OnSuccess or OnFailure.
// Only a driver failure of Test selects the failure branch. Other errors of
// Test, and every error of a branch, are returned unchanged.
type ConditionalAction struct {
	Test      *Built
	OnSuccess *Built
	OnFailure *Built
}

type conditionalParams struct {
	Test   any `mapstructure:"test_action"`
	Result any `mapstructure:"result_action"`
	Fail   any `mapstructure:"fail_action"`
}

func newConditionalAction(p Parameters) (Action, error) {
	var raw conditionalParams
	if err := decodeFixed(p, &raw); err != nil {
		return nil, err
	}
	if raw.Test == nil {
		return nil, required("test_action", "")
	}

	a := &ConditionalAction{}
	var err error
	if a.Test, err = BuildDefinition(raw.Test); err != nil {
		return nil, err
	}
	if raw.Result != nil {
		if a.OnSuccess, err = BuildDefinition(raw.Result); err != nil {
			return nil, err
		}
	}
	if raw.Fail != nil {
		if a.OnFailure, err = BuildDefinition(raw.Fail); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *ConditionalAction) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	env.Logger.Info().Msgf("Executing test action %s", a.Test.Name)
	if _, err := a.Test.Execute(ctx, env); err != nil {
		if !session.IsDriverFailure(err) {
			return Outcome{}, err
		}
		env.Logger.Info().Err(err).Msgf("Test action %s failed", a.Test.Name)
		if a.OnFailure == nil {
			env.Logger.Info().Msg("No fail action defined, continuing")
			return Outcome{}, nil
		}
		env.Logger.Info().Msgf("Running fail action %s", a.OnFailure.Name)
		return a.OnFailure.Execute(ctx, env)
	}

	if a.OnSuccess == nil {
		return Outcome{}, nil
	}
	env.Logger.Info().Msgf("Running result action %s", a.OnSuccess.Name)
	return a.OnSuccess.Execute(ctx, env)
}
