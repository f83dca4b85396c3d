package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/reqflow/config"
	"github.com/s0up4200/reqflow/request"
	"github.com/s0up4200/reqflow/upload"
)

func TestParseData(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "string", pairs: []string{"name=ann"}, want: map[string]any{"name": "ann"}},
		{name: "json values", pairs: []string{"age=31", "admin=true", `tags=["a","b"]`}, want: map[string]any{
			"age":   float64(31),
			"admin": true,
			"tags":  []any{"a", "b"},
		}},
		{name: "nested path", pairs: []string{"profile.name=ann", "profile.age=31"}, want: map[string]any{
			"profile": map[string]any{"name": "ann", "age": float64(31)},
		}},
		{name: "empty value", pairs: []string{"q="}, want: map[string]any{"q": ""}},
		{name: "equals in value", pairs: []string{"expr=a=b"}, want: map[string]any{"expr": "a=b"}},
		{name: "missing separator", pairs: []string{"name"}, wantErr: true},
		{name: "missing key", pairs: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseData(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"X-App: demo", "Accept:application/json"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-App": "demo", "Accept": "application/json"}, got)

	_, err = parseHeaders([]string{"no-colon"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	value := map[string]any{"items": []any{map[string]any{"id": 1}, map[string]any{"id": 2}}}

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, value, ""))
		assert.JSONEq(t, `{"items":[{"id":1},{"id":2}]}`, buf.String())
	})

	t.Run("jq", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, value, ".items[].id"))
		assert.Equal(t, "1\n2\n", buf.String())
	})

	t.Run("jq string", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printResult(&buf, map[string]any{"name": "ann"}, ".name"))
		assert.Equal(t, "ann\n", buf.String())
	})

	t.Run("invalid jq", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, printResult(&buf, value, ".items["))
	})

	t.Run("jq runtime error", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, printResult(&buf, value, ".items | keys | .[0] + {}"))
	})
}

func TestShowConfig(t *testing.T) {
	c := &config.Config{
		Client:  config.ClientConfig{Timeout: 30 * time.Second, RepeatWindow: 500 * time.Millisecond},
		Request: config.RequestConfig{Origin: "https://api.example.com"},
		Redis:   config.RedisConfig{Password: "hunter2"},
	}

	var buf bytes.Buffer
	require.NoError(t, showConfig(&buf, c, ""))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	client := doc["client"].(map[string]any)
	assert.Equal(t, "30s", client["timeout"])
	assert.Equal(t, "500ms", client["repeat_window"])
	assert.NotContains(t, buf.String(), "hunter2")

	buf.Reset()
	require.NoError(t, showConfig(&buf, c, "request.origin"))
	assert.Equal(t, "https://api.example.com\n", buf.String())

	assert.Error(t, showConfig(&buf, c, "request.nope"))
}

func TestUploadOptions(t *testing.T) {
	cfg = &config.Config{Upload: config.UploadConfig{Concurrency: 2}}
	t.Cleanup(func() {
		uploadKind, uploadResult, concurrency, uploadForm = string(upload.KindImage), "", -1, nil
	})

	uploadKind, uploadResult, concurrency = "video", "data.url", -1
	uploadForm = []string{"folder=album"}
	opts, err := uploadOptions()
	require.NoError(t, err)
	assert.Equal(t, upload.KindVideo, opts.Kind)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, []string{"data", "url"}, opts.ResultField.Keys())
	assert.Equal(t, map[string]string{"folder": "album"}, opts.FormData)

	concurrency = 0
	opts, err = uploadOptions()
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Concurrency)

	uploadKind = "audio"
	_, err = uploadOptions()
	assert.Error(t, err)
}

func TestReadToken(t *testing.T) {
	tok, err := readToken(strings.NewReader("  abc123 \nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)

	tok, err = readToken(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", tok)

	_, err = readToken(strings.NewReader("\n"))
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", maskToken("abc"))
	assert.Equal(t, "abcd****mnop", maskToken("abcdefghmnop"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reqflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// resetFlags clears flag values left over from earlier runs of rootCmd
func resetFlags() {
	method, dataArgs, headerArgs = "GET", nil, nil
	jqExpr, where, timeout, repeatTime = "", "", 0, -1
	itemsPath, pageParam, maxPages = "list", "page", 0
	profile = ""
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return executeContext(t, ctx, stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRequestCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "demo", r.Header.Get("X-App"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":{"name":"ann","page":2}}`))
	}))
	defer srv.Close()

	t.Setenv("REQFLOW_TOKEN", "secret")
	path := writeConfig(t, "request:\n  origin: "+srv.URL+"\nlogging:\n  level: error\n")

	out, err := execute(t, "", "--config", path, "request", "users", "-d", "page=2", "-H", "X-App: demo", "--jq", ".name")
	require.NoError(t, err)
	assert.Equal(t, "ann\n", out)
}

func TestAuthCommands(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	t.Cleanup(config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
	t.Setenv("REQFLOW_TOKEN", "")
	path := writeConfig(t, "auth:\n  profile: work\nlogging:\n  level: error\n")

	out, err := execute(t, "", "--config", path, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No token for profile work")

	out, err = execute(t, "tok-123456789\n", "--config", path, "auth", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "Token saved for profile work")

	item, err := ring.Get("token:work")
	require.NoError(t, err)
	assert.Equal(t, "tok-123456789", string(item.Data))

	out, err = execute(t, "", "--config", path, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "tok-*****6789")

	_, err = execute(t, "", "--config", path, "auth", "clear")
	require.NoError(t, err)
	_, err = ring.Get("token:work")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)
}

func TestPageCommand(t *testing.T) {
	pages := map[string]string{
		"1": `{"code":200,"data":{"list":[{"id":1,"open":true},{"id":2,"open":false}]}}`,
		"2": `{"code":200,"data":{"list":[{"id":3,"open":true}]}}`,
		"3": `{"code":200,"data":{"list":[]}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("page")]
		if !assert.True(t, ok, "unexpected page %q", r.URL.Query().Get("page")) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	t.Setenv("REQFLOW_TOKEN", "secret")
	path := writeConfig(t, "request:\n  origin: "+srv.URL+"\nlogging:\n  level: error\n")

	out, err := execute(t, "", "--config", path, "page", "orders", "--where", "open == true", "--jq", "[.[].id]")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,3]`, out)

	out, err = execute(t, "", "--config", path, "page", "orders", "--max", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"open":true},{"id":2,"open":false}]`, out)
}

func TestRequestCommand_Where(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":[{"name":"ann","age":34},{"name":"bob","age":19}]}`))
	}))
	defer srv.Close()

	t.Setenv("REQFLOW_TOKEN", "secret")
	path := writeConfig(t, "request:\n  origin: "+srv.URL+"\nlogging:\n  level: error\n")

	out, err := execute(t, "", "--config", path, "request", "users", "--where", "age > 30", "--jq", ".[].name")
	require.NoError(t, err)
	assert.Equal(t, "ann\n", out)

	_, err = execute(t, "", "--config", path, "request", "users", "--repeat", "0", "--where", "age >")
	assert.Error(t, err)
}

func TestRequestCommand_Cancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	t.Setenv("REQFLOW_TOKEN", "secret")
	path := writeConfig(t, "request:\n  origin: "+srv.URL+"\nlogging:\n  level: error\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := executeContext(t, ctx, "", "--config", path, "request", "slow", "--repeat", "0")
	require.Error(t, err)
	assert.ErrorIs(t, err, request.ErrAborted)
}
