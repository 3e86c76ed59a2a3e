package cli

import (
	"fmt"
	"os"
)

// LintCmd validates a configuration without starting a browser.
type LintCmd struct {
	DataFlags `embed:""`
}

func (l *LintCmd) Run() error {
	cmdLogger, logRouter, err := l.newLogger(os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := logRouter.Close(); err != nil {
			fmt.Printf("Error during log shutdown: %v", err)
		}
	}()

	loadEnv(cmdLogger)

	path := l.configPath()
	cmdLogger.Info().Msgf("Validating %s", path)

	_, plan, err := prepare(path, cmdLogger, logRouter)
	if err != nil {
		return err
	}

	actionCount := 0
	for _, step := range plan {
		actionCount += len(step.Actions)
	}
	cmdLogger.Info().Int("steps", len(plan)).Int("actions", actionCount).Msg("Successfully validated configuration ✅")
	return nil
}
