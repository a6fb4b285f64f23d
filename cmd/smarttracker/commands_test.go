package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"smarttracker/internal/attachment"
	"smarttracker/internal/config"
	"smarttracker/internal/models"
	"smarttracker/internal/server"
	"smarttracker/internal/store"
	"smarttracker/internal/upload"
)

var jpegBytes = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), bytes.Repeat([]byte{0}, 64)...)

func startTestServer(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(logLevelEnvKey, "")

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	receiver, err := upload.NewReceiver(dir, upload.Policy{})
	require.NoError(t, err)
	mgr, err := attachment.NewManager(dir, "", logger)
	require.NoError(t, err)

	srv := server.New("127.0.0.1:0", store.New(mgr, logger), receiver, server.Options{Version: "test"}, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	return &cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIActivityWorkflow(t *testing.T) {
	cfg := startTestServer(t)

	out, err := runCLI(t, cfg, "create", "--lat", "1.0", "--lon", "2.0", "-d", "Park run", "--timestamp", "2024-05-01T08:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	imagePath := filepath.Join(t.TempDir(), "trail.jpg")
	require.NoError(t, os.WriteFile(imagePath, jpegBytes, 0o644))
	out, err = runCLI(t, cfg, "--json", "create", "--lat", "3", "--lon", "4", "--image", imagePath, "--timestamp", "2024-05-02T08:00:00.000Z")
	require.NoError(t, err)
	var created models.Activity
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "2", created.ID)
	require.NotNil(t, created.ImageURL)
	assert.True(t, strings.HasPrefix(*created.ImageURL, cfg.APIURL+"/uploads/"))

	out, err = runCLI(t, cfg, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2  "), lines[0])
	assert.Contains(t, lines[0], "[image]")
	assert.Contains(t, lines[1], "(1,2) - Park run")

	out, err = runCLI(t, cfg, "--yaml", "search", "park")
	require.NoError(t, err)
	var found []models.Activity
	require.NoError(t, yaml.Unmarshal([]byte(out), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "1", found[0].ID)

	out, err = runCLI(t, cfg, "update", "1", "-d", "Evening run")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = runCLI(t, cfg, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "description: Evening run")
	assert.Contains(t, out, "location: 1,2")

	out, err = runCLI(t, cfg, "delete", "2")
	require.NoError(t, err)
	assert.Equal(t, "deleted 2\n", out)

	_, err = runCLI(t, cfg, "show", "2")
	require.Error(t, err)
	assert.Contains(t, formatCLIError(err)[0], "not found")

	out, err = runCLI(t, cfg, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "activities: 1")
}

func TestCLICreateRequiresCoordinates(t *testing.T) {
	cfg := startTestServer(t)
	_, err := runCLI(t, cfg, "create", "--lat", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--lat and --lon are required")
}

func TestCLIRejectsConflictingFormats(t *testing.T) {
	cfg := startTestServer(t)
	_, err := runCLI(t, cfg, "--json", "--yaml", "list")
	require.Error(t, err)
}

func TestCLIServerUnreachable(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	cfg := config.Default()
	cfg.APIURL = "http://127.0.0.1:1"
	_, err := runCLI(t, &cfg, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestCLIConfigGetSet(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	t.Setenv("SMARTTRACKER_CONFIG_DIR", t.TempDir())
	cfg := config.Default()

	out, err := runCLI(t, &cfg, "config", "get", "upload_dir")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultUploadDir+"\n", out)

	_, err = runCLI(t, &cfg, "config", "get", "db_path")
	require.Error(t, err)

	out, err = runCLI(t, &cfg, "config", "set", "--global", "public_url", "https://tracker.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "public_url = https://tracker.example.com")

	path, err := config.GlobalPath()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `public_url = "https://tracker.example.com"`)
}
