package actions

import (
	"context"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// Signal tells the engine how to continue after an action.
type Signal int

const (
	// Continue proceeds with the next action.
	Continue Signal = iota
	// BreakBlock skips the remaining actions of the current step.
	BreakBlock
	// Exit stops the whole run.
	Exit
)

func (s Signal) String() string {
	switch s {
	case BreakBlock:
		return "break_block"
	case Exit:
		return "exit"
	default:
		return "continue"
	}
}

// Outcome is what an action hands back to the engine.
type Outcome struct {
	Signal Signal
	// Element is the located element, when the action found one.
	Element session.Element
	// Value is the return value of a dispatched method, if any.
	Value any
	// Status and Message are set by ExitAction.
	Status  int
	Message string
}

// Action is one executable browser operation or flow-control directive.
// Side effects go through env only.
type Action interface {
	Execute(ctx context.Context, env *session.Env) (Outcome, error)
}

// Built is an action instance together with the catalog name it was built from.
type Built struct {
	Name   string
	Action Action
}

func (b *Built) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	return b.Action.Execute(ctx, env)
}
