package core

import "github.com/arnavsurve/crawlstep/pkg/actions"

const (
	DriverWebDriver  = "webdriver"
	DriverCDP        = "cdp"
	DriverPlaywright = "playwright"
)

// SupportedDrivers lists the accepted values of the driver key.
var SupportedDrivers = []string{DriverWebDriver, DriverCDP, DriverPlaywright}

// Config is the crawler configuration, the "parameters" object of config.json.
type Config struct {
	StartURL        string         `yaml:"start_url"`
	Steps           []Step         `yaml:"steps"`
	UserParameters  map[string]any `yaml:"user_parameters"`
	StoreCookies    bool           `yaml:"store_cookies"`
	MaximizeWindow  bool           `yaml:"maximize_window"`
	Resolution      string         `yaml:"resolution"`
	DockerMode      bool           `yaml:"docker_mode"`
	PageLoadTimeout int            `yaml:"page_load_timeout"`
	RandomWaitRange []int          `yaml:"random_wait_range"`
	DriverOptions   []string       `yaml:"driver_options"`
	Driver          string         `yaml:"driver"`
	DriverURL       string         `yaml:"driver_url"`
	DriverPath      string         `yaml:"driver_path"`
	Debug           bool           `yaml:"debug"`
	MetricsFile     string         `yaml:"metrics_file"`
}

// DefaultConfig holds the values used for keys the configuration leaves out.
func DefaultConfig() Config {
	return Config{
		DockerMode:      true,
		PageLoadTimeout: 300,
		Driver:          DriverWebDriver,
	}
}

type Step struct {
	Description string             `yaml:"description"`
	Actions     []ActionDefinition `yaml:"actions"`
}

type ActionDefinition struct {
	Description string `yaml:"description"`
	Name        string `yaml:"action_name"`
	// Parameters is kept raw: the platform sometimes sends an empty list
	// instead of an empty object.
	Parameters any `yaml:"action_parameters"`
}

// PlannedAction is a built action with the description it was configured with.
type PlannedAction struct {
	Description string
	*actions.Built
}

type PlannedStep struct {
	Description string
	Actions     []PlannedAction
}

// Plan is the fully built, ready to execute form of the steps.
type Plan []PlannedStep
