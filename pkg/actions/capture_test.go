package actions_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/actions"
	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/arnavsurve/crawlstep/pkg/session/sessiontest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintHtmlPage(t *testing.T) {
	d := sessiontest.NewDriver()
	d.Source = "<html></html>"
	env := newEnv(t, d)

	d.Errors["page_source"] = sessiontest.ErrBoom
	_, err := run(t, env, "PrintHtmlPage", nil)
	require.NoError(t, err, "no level means no page source read")

	_, err = run(t, env, "PrintHtmlPage", map[string]any{"log_level": 20})
	require.Error(t, err)

	for _, level := range []any{0, 0.0, "", "0", false} {
		_, err = run(t, env, "PrintHtmlPage", map[string]any{"log_level": level})
		require.NoError(t, err, "falsy level %v is a no-op", level)
	}

	delete(d.Errors, "page_source")
	for _, level := range []any{10, "30", "warning", 50.0, true} {
		_, err = run(t, env, "PrintHtmlPage", map[string]any{"log_level": level})
		require.NoError(t, err)
	}
}

func TestDownloadPageContent_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "id,name\n1,foo\n")
	}))
	defer srv.Close()

	d := sessiontest.NewDriver()
	d.Jar = []map[string]any{{"name": "sid", "value": "abc"}}
	env := newEnv(t, d)

	_, err := run(t, env, "DownloadPageContent", map[string]any{"result_file_name": "data.csv", "url": srv.URL})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(env.DownloadDir, "data.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,foo\n", string(data))

	d.Jar = nil
	_, err = run(t, env, "DownloadPageContent", map[string]any{"result_file_name": "data.csv", "url": srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDownloadPageContent_Browser(t *testing.T) {
	d := sessiontest.NewDriver()
	d.URL = "https://example.com/report"
	d.Source = "<table></table>"
	env := newEnv(t, d)

	_, err := run(t, env, "DownloadPageContent", map[string]any{"result_file_name": "page.html", "use_stream_get": false})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/report"}, d.Visited)
	data, err := os.ReadFile(filepath.Join(env.DownloadDir, "page.html"))
	require.NoError(t, err)
	assert.Equal(t, "<table></table>", string(data))
}

func TestSaveCookieFile(t *testing.T) {
	d := sessiontest.NewDriver()
	d.Jar = []map[string]any{{"name": "sid", "value": "abc"}}
	env := newEnv(t, d)
	kenv, err := kbc.NewEnvironment(t.TempDir(), "1")
	require.NoError(t, err)
	env.Files = kenv

	_, err = run(t, env, "SaveCookieFile", map[string]any{"tags": []any{"cookies"}, "is_permanent": true})
	require.NoError(t, err)

	path := filepath.Join(kenv.FilesOutPath(), "cookies.json")
	var saved map[string][]map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "sid", saved["cookies"][0]["name"])

	var manifest map[string]any
	data, err = os.ReadFile(path + ".manifest")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, []any{"cookies"}, manifest["tags"])
	assert.Equal(t, true, manifest["is_permanent"])
}

func TestTakeScreenshot(t *testing.T) {
	d := sessiontest.NewDriver()
	env := newEnv(t, d)

	_, err := run(t, env, "TakeScreenshot", map[string]any{"name": "home"})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(env.DataDir, "screens", "home.png"))
	require.NoError(t, err)
	assert.Equal(t, d.PNG, data)
}

func TestTakeScreenshot_Upload(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{"key": r.Form.Get("key"), "name": r.Form.Get("name"), "image": r.Form.Get("image")}
		fmt.Fprint(w, `{"data":{"url":"https://i.ibb.co/x/home.png"},"success":true,"status":200}`)
	}))
	defer srv.Close()

	d := sessiontest.NewDriver()
	env := newEnv(t, d)
	shot := &actions.TakeScreenshot{Name: "home", Folder: "shots", ImgbbToken: "tok", ImgbbAPIURL: srv.URL}

	out, err := shot.Execute(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/x/home.png", out.Value)
	assert.Equal(t, "tok", form["key"])
	assert.Equal(t, "123_home", form["name"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(d.PNG), form["image"])
	assert.FileExists(t, filepath.Join(env.DataDir, "shots", "home.png"))

	env.RunID = ""
	_, err = shot.Execute(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "_home", form["name"])
}
