package actions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arnavsurve/crawlstep/pkg/session"
	"github.com/arnavsurve/crawlstep/pkg/types"
)

const (
	defaultImgbbEndpoint = "https://api.imgbb.com/1/upload"
	cookieFileName       = "cookies.json"
)

// PrintHtmlPage logs the current page source. Without a level it does nothing.
type PrintHtmlPage struct {
	LogLevel any `mapstructure:"log_level"`

	level types.Level
	set   bool
}

// parseLevel leaves the action disabled for a falsy level (absent, 0, "" or false).
func (a *PrintHtmlPage) parseLevel() error {
	switch v := a.LogLevel.(type) {
	case nil:
		return nil
	case bool:
		if v {
			a.level, a.set = types.DebugLevel, true
		}
		return nil
	case int:
		a.setNumber(v)
		return nil
	case float64:
		a.setNumber(int(v))
		return nil
	case string:
		if v == "" {
			return nil
		}
		if n, err := strconv.Atoi(v); err == nil {
			a.setNumber(n)
			return nil
		}
		switch strings.ToLower(v) {
		case "debug":
			a.level = types.DebugLevel
		case "info":
			a.level = types.InfoLevel
		case "warn", "warning":
			a.level = types.WarnLevel
		case "error", "critical":
			a.level = types.ErrorLevel
		default:
			return fmt.Errorf("unknown log_level %q", v)
		}
		a.set = true
		return nil
	}
	return fmt.Errorf("log_level must be a number or a level name, got %T", a.LogLevel)
}

func (a *PrintHtmlPage) setNumber(n int) {
	if n == 0 {
		return
	}
	a.level, a.set = levelFromNumber(n), true
}

// levelFromNumber maps the numeric levels 10, 20, 30, 40, 50 used by the
// component configuration.
func levelFromNumber(n int) types.Level {
	switch {
	case n <= 10:
		return types.DebugLevel
	case n <= 20:
		return types.InfoLevel
	case n <= 30:
		return types.WarnLevel
	default:
		return types.ErrorLevel
	}
}

func (a *PrintHtmlPage) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	if !a.set {
		return Outcome{}, nil
	}
	source, err := env.Driver.PageSource()
	if err != nil {
		return Outcome{}, err
	}
	env.Logger.WithLevel(a.level).Msg(source)
	return Outcome{}, nil
}

// DownloadPageContent saves the content at URL (or the current page) into
// the download folder.
type DownloadPageContent struct {
	ResultFileName string `mapstructure:"result_file_name"`
	URL            string `mapstructure:"url"`
	UseStreamGet   bool   `mapstructure:"use_stream_get"`
}

func (a *DownloadPageContent) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	target := a.URL
	if target == "" {
		current, err := env.Driver.CurrentURL()
		if err != nil {
			return Outcome{}, err
		}
		target = current
	}
	path := filepath.Join(env.DownloadDir, a.ResultFileName)
	env.Logger.Info().Str("url", target).Str("file", a.ResultFileName).Msg("Downloading page content")

	if a.UseStreamGet {
		return Outcome{Value: path}, a.stream(ctx, env, target, path)
	}

	if err := env.Driver.Get(ctx, target); err != nil {
		return Outcome{}, err
	}
	source, err := env.Driver.PageSource()
	if err != nil {
		return Outcome{}, err
	}
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing page content %q: %w", path, err)
	}
	return Outcome{Value: path}, nil
}

// stream fetches target with the browser cookies and copies the body to path.
func (a *DownloadPageContent) stream(ctx context.Context, env *session.Env, target, path string) error {
	cookies, err := env.Driver.Cookies()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request for %q: %w", target, err)
	}
	for _, c := range cookies {
		name, _ := c["name"].(string)
		if name == "" {
			continue
		}
		req.AddCookie(&http.Cookie{Name: name, Value: fmt.Sprint(c["value"])})
	}

	resp, err := httpClient(env).Do(req)
	if err != nil {
		return fmt.Errorf("requesting %q: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("requesting %q: unexpected status %d", target, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// SaveCookieFile exports the current cookies as an output file with a manifest.
type SaveCookieFile struct {
	Tags        []string `mapstructure:"tags"`
	IsPermanent bool     `mapstructure:"is_permanent"`
}

func (a *SaveCookieFile) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	if env.Files == nil {
		return Outcome{}, fmt.Errorf("no output writer configured")
	}
	cookies, err := env.Driver.Cookies()
	if err != nil {
		return Outcome{}, err
	}
	if cookies == nil {
		cookies = []map[string]any{}
	}

	def := env.Files.CreateOutFileDefinition(cookieFileName, a.Tags, a.IsPermanent)
	data, err := json.Marshal(map[string]any{"cookies": cookies})
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding cookies: %w", err)
	}
	if err := os.WriteFile(def.FullPath, data, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing cookie file %q: %w", def.FullPath, err)
	}
	if err := env.Files.WriteManifest(def); err != nil {
		return Outcome{}, fmt.Errorf("writing cookie file manifest: %w", err)
	}
	env.Logger.Info().Str("file", def.FullPath).Int("cookies", len(cookies)).Msg("Cookies saved")
	return Outcome{Value: def.FullPath}, nil
}

// TakeScreenshot stores a PNG of the viewport under <data>/<folder>/<name>.png
// and optionally uploads it to ImgBB.
type TakeScreenshot struct {
	Name        string `mapstructure:"name"`
	Folder      string `mapstructure:"folder"`
	ImgbbToken  string `mapstructure:"#imgbb_token"`
	ImgbbAPIURL string `mapstructure:"-"`
}

func (a *TakeScreenshot) Execute(ctx context.Context, env *session.Env) (Outcome, error) {
	dir := filepath.Join(env.DataDir, a.Folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("creating screenshot folder %q: %w", dir, err)
	}
	png, err := env.Driver.Screenshot()
	if err != nil {
		return Outcome{}, err
	}
	path := filepath.Join(dir, a.Name+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing screenshot %q: %w", path, err)
	}
	env.Logger.Info().Str("file", path).Msg("Screenshot saved")

	if a.ImgbbToken != "" {
		name := env.RunID + "_" + a.Name
		link, err := a.upload(ctx, env, name, png)
		if err != nil {
			return Outcome{}, err
		}
		env.Logger.Info().Str("url", link).Msg("Screenshot uploaded")
		return Outcome{Value: link}, nil
	}
	return Outcome{Value: path}, nil
}

type imgbbResponse struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

func (a *TakeScreenshot) upload(ctx context.Context, env *session.Env, name string, png []byte) (string, error) {
	endpoint := a.ImgbbAPIURL
	if endpoint == "" {
		endpoint = defaultImgbbEndpoint
	}
	form := url.Values{}
	form.Set("key", a.ImgbbToken)
	form.Set("name", name)
	form.Set("image", base64.StdEncoding.EncodeToString(png))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating screenshot upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient(env).Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading screenshot %q: %w", name, err)
	}
	defer resp.Body.Close()

	var out imgbbResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding screenshot upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		return "", fmt.Errorf("uploading screenshot %q: status %d", name, resp.StatusCode)
	}
	return out.Data.URL, nil
}

func httpClient(env *session.Env) *http.Client {
	if env.HTTPClient != nil {
		return env.HTTPClient
	}
	return http.DefaultClient
}
