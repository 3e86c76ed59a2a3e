package core

import (
	"context"

	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/session"
)

// Session is the browser session a run drives. *session.Session implements it.
type Session interface {
	Start(ctx context.Context, url string) error
	Stop() error
	MaximizeWindow() error
	Cookies() ([]map[string]any, error)
	LoadCookies(cookies []map[string]any) error
	Env() *session.Env
	WaitRandom(ctx context.Context) error
}

// StateStore persists the cookies between runs. *kbc.Environment implements it.
type StateStore interface {
	ReadState() (*kbc.State, error)
	WriteState(state *kbc.State) error
}
