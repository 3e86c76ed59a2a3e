package webdriver

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/arnavsurve/crawlstep/pkg/session"
)

// chromeCapabilities builds the Chrome options of the original crawler: downloads
// go straight to the download folder, container flags when headless.
func chromeCapabilities(opts session.Options) selenium.Capabilities {
	args := []string{"--no-sandbox", "--disable-features=VizDisplayCompositor"}
	if opts.Headless {
		args = append(args, "--disable-gpu", "--disable-dev-shm-usage", "--headless")
	}
	args = append(args, opts.ExtraArgs...)

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args: args,
		Prefs: map[string]interface{}{
			"download.default_directory":   opts.DownloadDir,
			"download.prompt_for_download": false,
			"safebrowsing.enabled":         false,
		},
		Path: os.Getenv("CHROME_BINARY_PATH"),
	})
	return caps
}

func findChromeDriver(configured string) (string, error) {
	for _, p := range []string{configured, os.Getenv("CHROMEDRIVER_PATH")} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if p, err := exec.LookPath("chromedriver"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("chromedriver not found, install it or set driver_path")
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// readjustedSize returns the outer window size that makes the viewport match
// the desired size, given the viewport measured after a first resize.
func readjustedSize(desiredW, desiredH, innerW, innerH int) (int, int) {
	return 2*desiredW - innerW, 2*desiredH - innerH
}

// toCookie converts a stored cookie to the wire form. Only the fields every
// driver accepts are copied.
func toCookie(m map[string]any) (*selenium.Cookie, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("cookie without a name: %v", m)
	}
	c := &selenium.Cookie{Name: name, Value: fmt.Sprint(m["value"])}
	if v, ok := m["path"].(string); ok {
		c.Path = v
	}
	if v, ok := m["domain"].(string); ok {
		c.Domain = v
	}
	if v, ok := m["secure"].(bool); ok {
		c.Secure = v
	}
	switch v := m["expiry"].(type) {
	case int:
		if v > 0 {
			c.Expiry = uint(v)
		}
	case float64:
		if v > 0 {
			c.Expiry = uint(math.Round(v))
		}
	}
	return c, nil
}

func fromCookie(c selenium.Cookie) map[string]any {
	m := map[string]any{
		"name":   c.Name,
		"value":  c.Value,
		"path":   c.Path,
		"domain": c.Domain,
		"secure": c.Secure,
	}
	if c.Expiry > 0 {
		m["expiry"] = int(c.Expiry)
	}
	return m
}

// fail classifies a selenium error: timeouts wrap session.ErrTimeout, the rest
// become plain driver failures.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return session.Fail(op, fmt.Errorf("%w: %v", session.ErrTimeout, err))
	}
	return session.Fail(op, err)
}

func isTimeout(err error) bool {
	var se *selenium.Error
	if errors.As(err, &se) {
		return strings.Contains(se.Err, "timeout") || se.LegacyCode == 21 || se.LegacyCode == 28
	}
	return false
}
