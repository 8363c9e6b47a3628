package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ingamehud/internal/config"
	"github.com/mcoot/ingamehud/internal/events"
	"github.com/mcoot/ingamehud/internal/factory"
	"github.com/mcoot/ingamehud/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "hudsync-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/hudsync")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}

// testService runs the whole service in-process: embedded NATS, the admin
// API and SQLite storage
type testService struct {
	cfg       config.Config
	adminURL  string
	publisher *events.Publisher
	stop      func()
}

func newConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Embedded.Path = filepath.Join(t.TempDir(), "ingamehud.db")
	cfg.Events.Port = freePort(t)
	cfg.Admin.Addr = fmt.Sprintf("127.0.0.1:%d", freePort(t))
	cfg.Sync.TickInterval = 5 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func startService(t *testing.T, cfg config.Config) *testService {
	t.Helper()

	app, err := factory.New(cfg, testutil.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	adminURL := "http://" + cfg.Admin.Addr
	waitForServer(t, adminURL+"/api/v1/health")

	conn, err := nats.Connect(fmt.Sprintf("nats://%s:%d", cfg.Events.Host, cfg.Events.Port))
	require.NoError(t, err)

	svc := &testService{
		cfg:       cfg,
		adminURL:  adminURL,
		publisher: events.NewPublisher(conn, cfg.Events.SubjectPrefix),
	}
	var stopped bool
	svc.stop = func() {
		if stopped {
			return
		}
		stopped = true
		conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("service did not stop")
		}
	}
	t.Cleanup(svc.stop)
	return svc
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type settingsResponse struct {
	PlayerID    string `json:"player_id"`
	Phase       string `json:"phase"`
	HUDEnabled  bool   `json:"hud_enabled"`
	HUDPosition int    `json:"hud_position"`
	Language    string `json:"language"`
}

type commandResponse struct {
	Settings settingsResponse `json:"settings"`
	Saved    bool             `json:"saved"`
}

type healthResponse struct {
	Status           string `json:"status"`
	StorageConnected bool   `json:"storage_connected"`
	StorageProvider  string `json:"storage_provider"`
}

type playersResponse struct {
	Players []string `json:"players"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal([]byte(output), &out), "output: %s", output)
	return out
}

func (r *cliRunner) waitForPhase(t *testing.T, id, phase string) settingsResponse {
	t.Helper()
	var last settingsResponse
	require.Eventually(t, func() bool {
		out, err := r.run("settings", "get", id)
		if err != nil {
			return false
		}
		last = decode[settingsResponse](t, out)
		return last.Phase == phase
	}, 5*time.Second, 20*time.Millisecond)
	return last
}

func TestCLIEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	cfg := newConfig(t)
	svc := startService(t, cfg)
	cli := newCLIRunner(t, svc.adminURL)
	id := "76561198000000001"

	// Health reports the embedded database
	out, err := cli.run("health")
	require.NoError(t, err, out)
	health := decode[healthResponse](t, out)
	assert.True(t, health.StorageConnected)
	assert.Equal(t, "sqlite", health.StorageProvider)

	// A player joins through the event bridge and gets defaults
	require.NoError(t, svc.publisher.Connect(id))
	settings := cli.waitForPhase(t, id, "ready")
	assert.True(t, settings.HUDEnabled)
	assert.Equal(t, 3, settings.HUDPosition)

	out, err = cli.run("players")
	require.NoError(t, err, out)
	assert.Equal(t, []string{id}, decode[playersResponse](t, out).Players)

	// The player types a chat command
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	reply, err := svc.publisher.Command(ctx, id, "position", "1")
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, 1, reply.Position)

	// An admin changes the language
	out, err = cli.run("settings", "set", id, "--language", "zh", "--toggle")
	require.NoError(t, err, out)
	cmd := decode[commandResponse](t, out)
	assert.True(t, cmd.Saved)
	assert.Equal(t, "zh", cmd.Settings.Language)
	assert.False(t, cmd.Settings.HUDEnabled)

	// Invalid commands are rejected without changing anything
	out, err = cli.run("settings", "set", id, "--position", "6")
	assert.Error(t, err)
	assert.Contains(t, out, "INVALID_POSITION")

	// The player leaves; the entry is saved and evicted
	require.NoError(t, svc.publisher.Disconnect(id))
	cli.waitForPhase(t, id, "disconnected")

	out, err = cli.run("players")
	require.NoError(t, err, out)
	assert.Empty(t, decode[playersResponse](t, out).Players)

	svc.stop()

	// After a restart over the same database the choices come back
	restarted := startService(t, cfg)
	require.NoError(t, restarted.publisher.Connect(id))
	settings = cli.waitForPhase(t, id, "ready")
	assert.Equal(t, 1, settings.HUDPosition)
	assert.Equal(t, "zh", settings.Language)
	assert.False(t, settings.HUDEnabled)
}

func TestCLICheck(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	cli := newCLIRunner(t, "http://127.0.0.1:1")

	path := filepath.Join(t.TempDir(), "hud.yaml")
	dbPath := filepath.Join(t.TempDir(), "check.db")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
storage:
  mysql:
    enabled: true
    host: 127.0.0.1
    port: 1
    connect_timeout: 200ms
  embedded:
    path: %s
log:
  level: error
`, dbPath)), 0o600))

	out, err := cli.run("check", "--config", path)
	require.NoError(t, err, out)

	var result struct {
		Provider string `json:"provider"`
		Attempts []struct {
			Provider string `json:"provider"`
			Error    string `json:"error"`
		} `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, "sqlite", result.Provider)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "mysql", result.Attempts[0].Provider)
	assert.NotEmpty(t, result.Attempts[0].Error)
}
