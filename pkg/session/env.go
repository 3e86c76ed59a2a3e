package session

import (
	"net/http"

	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

// OutputWriter creates exported artifacts and their manifests.
type OutputWriter interface {
	CreateOutFileDefinition(name string, tags []string, isPermanent bool) kbc.FileDefinition
	WriteManifest(def kbc.FileDefinition) error
}

// Env is the capability bundle handed to every action.
type Env struct {
	Driver      Driver
	DownloadDir string
	DataDir     string
	RunID       string
	// MainWindow is captured once at session start and tells popups apart.
	MainWindow string
	Files      OutputWriter
	Logger     types.Logger
	HTTPClient *http.Client
}
