package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runClient(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewClientCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClientCommands(t *testing.T) {
	var gotPath string
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotPath, gotForm = r.URL.Path, r.PostForm
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"err":"control: unknown bot: \"x\""}`))
	}))
	defer srv.Close()

	out, err := runClient(t, "-s", srv.URL, "start", "-b", "alpha,beta")
	require.NoError(t, err, "server-side failures still exit cleanly")
	assert.Equal(t, "/start", gotPath)
	assert.Equal(t, []string{"alpha", "beta"}, gotForm["bots"])
	assert.Contains(t, out, "\"err\": ")

	_, err = runClient(t, "-s", srv.URL, "bot", "alpha", "beta", "say:hello world")
	require.NoError(t, err)
	assert.Equal(t, "/bot", gotPath)
	assert.Equal(t, []string{"alpha", "beta"}, gotForm["targets"])
	assert.Equal(t, []string{"say:hello world"}, gotForm["instruction"])

	_, err = runClient(t, "-s", srv.URL, "interact", "alpha")
	require.NoError(t, err)
	assert.Equal(t, "/interact", gotPath)

	_, err = runClient(t, "-s", srv.URL, "resource", "ack")
	assert.Error(t, err, "instruction is required")
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := runClient(t, "-s", url, "status")
	assert.Error(t, err)
}

func TestServerInit(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ibots.toml")
	cmd := NewServerCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{p, "--init"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wrote sample configuration")

	_, err := os.Stat(p)
	require.NoError(t, err)
}

func TestServerConfigFlags(t *testing.T) {
	t.Setenv("GREETER_PASSWORD", "pw")
	p := filepath.Join(t.TempDir(), "ibots.toml")
	require.NoError(t, os.WriteFile(p, []byte(`
[global]
endpoint = "ibis.test"

[bots.greeter]
class = "hello"
password = "env:GREETER_PASSWORD"

[bots.probe]
class = "tester"
password = "pw"
`), 0o600))

	cmd := NewServerCommand()
	opts := &ServerOptions{Port: 9100, Bots: []string{"probe"}, Directory: "/tmp/ibots-test", LogLevel: "debug"}
	require.NoError(t, cmd.Flags().Set("port", "9100"))

	cfg, err := loadServerConfig(cmd, p, opts)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Control.Port)
	assert.Equal(t, "/tmp/ibots-test", cfg.Storage.Directory)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"probe"}, cfg.BotNames())

	opts.Bots = []string{"ghost"}
	_, err = loadServerConfig(cmd, p, opts)
	assert.Error(t, err)
}
