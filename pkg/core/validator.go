package core

import (
	"fmt"
	"strings"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// ValidateConfig checks the configuration before anything is resolved or built.
func ValidateConfig(cfg *Config) error {
	var missing []string
	if strings.TrimSpace(cfg.StartURL) == "" {
		missing = append(missing, "start_url")
	}
	if cfg.Steps == nil {
		missing = append(missing, "steps")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing mandatory parameters: %s", strings.Join(missing, ", "))
	}

	for i, step := range cfg.Steps {
		for j, a := range step.Actions {
			if a.Name == "" {
				return fmt.Errorf("step %d (%q) action %d is missing 'action_name'", i, step.Description, j)
			}
		}
	}

	if cfg.Resolution != "" {
		if _, _, err := session.ParseResolution(cfg.Resolution); err != nil {
			return err
		}
	}

	if r := cfg.RandomWaitRange; r != nil {
		if len(r) != 2 {
			return fmt.Errorf("random_wait_range must have exactly two values, got %d", len(r))
		}
		if r[0] < 0 || r[1] < r[0] {
			return fmt.Errorf("random_wait_range [%d, %d] must be non-negative and ordered", r[0], r[1])
		}
	}

	if cfg.PageLoadTimeout < 0 {
		return fmt.Errorf("page_load_timeout must not be negative")
	}

	switch cfg.Driver {
	case "", DriverWebDriver, DriverCDP, DriverPlaywright:
	default:
		return fmt.Errorf("driver %q is not supported, use one of: %s", cfg.Driver, strings.Join(SupportedDrivers, ", "))
	}
	return nil
}
