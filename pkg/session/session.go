package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arnavsurve/crawlstep/pkg/types"
)

const (
	defaultPageLoadTimeout = 300 * time.Second
	mainHandleAttempts     = 50
	mainHandleInterval     = 100 * time.Millisecond
)

// WaitRange is an inclusive range of seconds.
type WaitRange struct {
	Min int
	Max int
}

type Options struct {
	DownloadDir string
	DataDir     string
	RunID       string
	// Resolution is WIDTHxHEIGHT, e.g. 2560x1440. Empty keeps the browser default.
	Resolution string
	// Headless enables the container flags (headless, no gpu, no /dev/shm).
	Headless        bool
	PageLoadTimeout time.Duration
	// RandomWait is applied after every action. Nil disables it.
	RandomWait *WaitRange
	// DriverURL points to an already running WebDriver / DevTools endpoint.
	DriverURL string
	// DriverPath overrides the chromedriver (or chrome) binary location.
	DriverPath string
	// ExtraArgs are appended to the browser command line.
	ExtraArgs []string
}

// Session owns the single browser session of a run.
type Session struct {
	opts    Options
	factory DriverFactory
	files   OutputWriter
	logger  types.Logger

	driver     Driver
	mainWindow string
	stopped    bool

	rnd   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options, factory DriverFactory, files OutputWriter, logger types.Logger) *Session {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoadTimeout
	}
	return &Session{
		opts:    opts,
		factory: factory,
		files:   files,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   Sleep,
	}
}

// SetSleeper replaces the delay implementation, mainly for tests.
func (s *Session) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

// Start launches the browser, captures the main window handle and opens url.
func (s *Session) Start(ctx context.Context, url string) error {
	if s.driver != nil {
		return fmt.Errorf("session already started")
	}
	if _, _, err := ParseResolution(s.opts.Resolution); s.opts.Resolution != "" && err != nil {
		return err
	}

	driver, err := s.factory(ctx, s.opts)
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	s.driver = driver

	for attempt := 0; s.mainWindow == "" && attempt < mainHandleAttempts; attempt++ {
		handle, err := driver.CurrentWindowHandle()
		if err == nil && handle != "" {
			s.mainWindow = handle
			break
		}
		if err := s.sleep(ctx, mainHandleInterval); err != nil {
			return err
		}
	}
	if s.mainWindow == "" {
		return fmt.Errorf("browser did not report a main window handle")
	}

	s.logger.Info().Str("url", url).Msg("Entering start URL")
	if err := driver.Get(ctx, url); err != nil {
		return fmt.Errorf("opening start url %q: %w", url, err)
	}
	return nil
}

// Stop quits the browser. It is safe to call more than once and before Start.
func (s *Session) Stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.driver == nil {
		return nil
	}
	if err := s.driver.Quit(); err != nil {
		return fmt.Errorf("stopping browser: %w", err)
	}
	s.logger.Debug().Msg("Browser session stopped")
	return nil
}

func (s *Session) MaximizeWindow() error {
	if s.driver == nil {
		return errNotStarted
	}
	return s.driver.MaximizeWindow()
}

func (s *Session) Cookies() ([]map[string]any, error) {
	if s.driver == nil {
		return nil, errNotStarted
	}
	return s.driver.Cookies()
}

// LoadCookies adds the cookies to the current domain. It must run after Start.
func (s *Session) LoadCookies(cookies []map[string]any) error {
	if len(cookies) == 0 {
		return nil
	}
	if s.driver == nil {
		return errNotStarted
	}
	for _, cookie := range cookies {
		if err := s.driver.AddCookie(cookie); err != nil {
			return fmt.Errorf("loading cookie %v: %w", cookie["name"], err)
		}
	}
	return nil
}

func (s *Session) Env() *Env {
	return &Env{
		Driver:      s.driver,
		DownloadDir: s.opts.DownloadDir,
		DataDir:     s.opts.DataDir,
		RunID:       s.opts.RunID,
		MainWindow:  s.mainWindow,
		Files:       s.files,
		Logger:      s.logger,
		HTTPClient:  &http.Client{Timeout: s.opts.PageLoadTimeout},
	}
}

// WaitRandom sleeps a whole number of seconds drawn uniformly from the configured range.
func (s *Session) WaitRandom(ctx context.Context) error {
	r := s.opts.RandomWait
	if r == nil {
		return nil
	}
	seconds := r.Min
	if r.Max > r.Min {
		seconds = r.Min + s.rnd.Intn(r.Max-r.Min+1)
	}
	s.logger.Info().Int("seconds", seconds).Msgf("Waiting for %d seconds (picked randomly)", seconds)
	return s.sleep(ctx, time.Duration(seconds)*time.Second)
}

var errNotStarted = errors.New("session not started")

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ParseResolution parses WIDTHxHEIGHT.
func ParseResolution(resolution string) (int, int, error) {
	invalid := fmt.Errorf("invalid resolution value: %q. Please provide WIDTHxHEIGHT (e.g. 2560x1440)", resolution)
	parts := strings.Split(strings.ToLower(strings.TrimSpace(resolution)), "x")
	if len(parts) != 2 {
		return 0, 0, invalid
	}
	width, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || width <= 0 {
		return 0, 0, invalid
	}
	height, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || height <= 0 {
		return 0, 0, invalid
	}
	return width, height, nil
}
