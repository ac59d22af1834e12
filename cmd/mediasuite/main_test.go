package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"mediasuite/internal/orchestrator"
)

const ffprobeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "24/1", "avg_frame_rate": "24/1"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "input.mp4", "nb_streams": 2, "duration": "12.5", "size": "4096", "bit_rate": "2621", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

type cliTestEnv struct {
	baseDir    string
	dataDir    string
	configPath string
	input      string
}

func setupCLITestEnv(t *testing.T, agents ...string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffprobe := filepath.Join(binDir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n" + ffprobeJSON + "\nJSON\n"
	if err := os.WriteFile(ffprobe, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}

	input := filepath.Join(base, "input.mp4")
	if err := os.WriteFile(input, bytes.Repeat([]byte{0x42}, 4096), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	env := &cliTestEnv{
		baseDir:    base,
		dataDir:    filepath.Join(base, "data"),
		configPath: filepath.Join(base, "config.toml"),
		input:      input,
	}
	writeTestConfig(t, env, ffprobe, agents)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv, ffprobe string, agents []string) {
	t.Helper()
	quoted := make([]string, len(agents))
	for i, id := range agents {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[logging]
level = "error"

[pipeline]
agents = [%s]
agent_timeout_seconds = 10

[validation]
probe_media = false
ffprobe_binary = %q
min_video_bytes = 1024
min_storyboard_bytes = 1024
`, env.dataDir, filepath.Join(env.baseDir, "logs"), strings.Join(quoted, ", "), ffprobe)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func processJSON(t *testing.T, env *cliTestEnv) orchestrator.Job {
	t.Helper()
	out, _, err := runCLI(t, []string{"process", env.input, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var job orchestrator.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode job: %v\n%s", err, out)
	}
	return job
}

func TestProcessRecordsJobAndMessages(t *testing.T) {
	env := setupCLITestEnv(t)

	job := processJSON(t, env)
	if job.Status != orchestrator.StatusCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	want := []string{"video-agent", "audio-agent", "metadata-agent", "storyboard-agent"}
	if got := job.AgentIDs(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("result order = %v", got)
	}
	video, _ := job.Result("video-agent")
	if video.Failed() || !video.Verified() {
		t.Fatalf("unexpected video result %+v", video)
	}
	if video.StringMetric("resolution") != "1920x1080" {
		t.Fatalf("resolution = %v", video.Metrics["resolution"])
	}
	metadata, _ := job.Result("metadata-agent")
	if metadata.StringMetric("file_kind") != "video/mp4" {
		t.Fatalf("file kind = %v", metadata.Metrics["file_kind"])
	}

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, job.ID)
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, []string{"jobs", "show", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "storyboard-agent")

	out, _, err = runCLI(t, []string{"messages", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 9 {
		t.Fatalf("expected 9 envelopes, got %d", len(lines))
	}

	out, _, err = runCLI(t, []string{"messages", job.ID, "--action", "process"}, env.configPath)
	if err != nil {
		t.Fatalf("messages --action: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(lines))
	}

	out, _, err = runCLI(t, []string{"jobs", "remove", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("jobs remove: %v", err)
	}
	requireContains(t, out, "Removed job")
	out, _, err = runCLI(t, []string{"jobs", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty list, got %s", out)
	}
}

func TestProcessHonorsConfiguredAgents(t *testing.T) {
	env := setupCLITestEnv(t, "audio-agent", "video-agent")
	job := processJSON(t, env)
	if got := job.AgentIDs(); strings.Join(got, ",") != "audio-agent,video-agent" {
		t.Fatalf("result order = %v", got)
	}

	out, _, err := runCLI(t, []string{"agents"}, env.configPath)
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if strings.Index(out, "audio-agent") > strings.Index(out, "video-agent") {
		t.Fatalf("agents listed out of order:\n%s", out)
	}
}

func TestProcessRejectsUnknownAgent(t *testing.T) {
	env := setupCLITestEnv(t, "thumbnail-agent")
	_, _, err := runCLI(t, []string{"process", env.input}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "thumbnail-agent") {
		t.Fatalf("expected unknown agent error, got %v", err)
	}
}

func TestProcessRefusesConcurrentRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data: %v", err)
	}
	lock := flock.New(filepath.Join(env.dataDir, "mediasuite.lock"))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	t.Cleanup(func() { _ = lock.Unlock() })

	_, _, err = runCLI(t, []string{"process", env.input}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestStatusReportsPreflightAndDatabase(t *testing.T) {
	env := setupCLITestEnv(t)
	processJSON(t, env)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "Data directory")
	requireContains(t, out, "FFprobe")
	requireContains(t, out, "completed=1")
	requireContains(t, out, "9 recorded")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}
