package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// downloadPollInterval backs up the watcher on filesystems that drop events.
var downloadPollInterval = 500 * time.Millisecond

// partialSuffixes mark downloads the browser has not finished writing yet.
var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// ClickElementToDownload clicks an element and waits for the browser to
// drop a new file into the download folder.
type ClickElementToDownload struct {
	XPath          string `mapstructure:"xpath"`
	Delay          int    `mapstructure:"delay"`
	Timeout        int    `mapstructure:"timeout"`
	ResultFileName string `mapstructure:"result_file_name"`
}

func (a *ClickElementToDownload) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	existing, err := listFiles(env.DownloadDir)
	if err != nil {
		return Outcome{}, err
	}

	el, err := env.Driver.FindElement(a.XPath)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := el.Call("click", nil, nil); err != nil {
		return Outcome{}, err
	}

	if err := session.Sleep(ctx, time.Duration(a.Delay)*time.Second); err != nil {
		return Outcome{}, err
	}

	timeout := time.Duration(a.Timeout) * time.Second
	files, err := waitForNewFiles(ctx, env.DownloadDir, existing, timeout)
	if err != nil {
		return Outcome{}, err
	}
	env.Logger.Info().Interface("files", files).Msg("Download finished")

	if a.ResultFileName != "" && len(files) == 1 {
		target := filepath.Join(env.DownloadDir, a.ResultFileName)
		if err := os.Rename(filepath.Join(env.DownloadDir, files[0]), target); err != nil {
			return Outcome{}, fmt.Errorf("renaming download %q: %w", files[0], err)
		}
		files = []string{a.ResultFileName}
	}
	return Outcome{Element: el, Value: files}, nil
}

// waitForNewFiles blocks until dir holds complete files that are not in
// existing. It gives up with a *session.TimeoutError.
func waitForNewFiles(ctx context.Context, dir string, existing map[string]struct{}, timeout time.Duration) ([]string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating download watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching download folder %q: %w", dir, err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(downloadPollInterval)
	defer ticker.Stop()

	events, errs := watcher.Events, watcher.Errors
	for {
		current, err := listFiles(dir)
		if err != nil {
			return nil, err
		}
		var added []string
		for name := range current {
			if _, ok := existing[name]; !ok {
				added = append(added, name)
			}
		}
		if len(added) > 0 {
			sort.Strings(added)
			return added, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &session.TimeoutError{Op: "file download", Timeout: timeout}
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-ticker.C:
		}
	}
}

// listFiles returns the complete regular files in dir.
func listFiles(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing download folder %q: %w", dir, err)
	}
	files := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || isPartial(entry.Name()) {
			continue
		}
		files[entry.Name()] = struct{}{}
	}
	return files, nil
}

func isPartial(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
