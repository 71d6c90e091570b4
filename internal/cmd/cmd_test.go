package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/adamancini/strata/internal/fsutil"
	"github.com/adamancini/strata/internal/platform"
	"github.com/adamancini/strata/internal/source"
	"github.com/adamancini/strata/internal/types"
)

type mockRunner struct {
	spawns [][]string
}

func (m *mockRunner) RunForeground(dir string, argv ...string) error {
	return errors.New("unexpected RunForeground")
}

func (m *mockRunner) RunSilent(dir string, argv ...string) error {
	return errors.New("unexpected RunSilent")
}

func (m *mockRunner) SpawnDetached(dir string, argv ...string) error {
	m.spawns = append(m.spawns, append([]string{dir}, argv...))
	return nil
}

type testApp struct {
	*app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	runner *mockRunner
	binDir string
}

// newTestApp installs a fake strata executable named exeName and points the
// config at releaseURL.
func newTestApp(t *testing.T, exeName, releaseURL string) *testApp {
	t.Helper()
	tmp := t.TempDir()
	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	exe := filepath.Join(binDir, exeName)
	if err := os.WriteFile(exe, []byte("old"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if releaseURL == "" {
		releaseURL = "https://example.com/releases/latest"
	}
	cfgPath := filepath.Join(tmp, "config.yaml")
	cfg := fmt.Sprintf("release:\n  url: %s\nupdater:\n  poll_interval: 10ms\n  max_wait: 5s\n", releaseURL)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	runner := &mockRunner{}
	a := newApp(BuildInfo{Version: "1.0.0", Commit: "abc123", Date: "2026-01-02"}, strings.NewReader(""), stdout, stderr)
	a.detectPlatform = func() platform.Platform { return platform.New(types.FamilyLinux, exe) }
	a.runner = runner
	a.isTerminal = func() bool { return false }
	a.workDir = filepath.Join(tmp, "work")
	a.configPath = cfgPath
	if err := os.MkdirAll(a.workDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	return &testApp{app: a, stdout: stdout, stderr: stderr, runner: runner, binDir: binDir}
}

func (ta *testApp) run(args ...string) error {
	root := ta.rootCmd()
	root.SetArgs(append(args, "--config", ta.configPath))
	return root.ExecuteContext(context.Background())
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, data)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		if err := ta.run("version"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		want := "strata version 1.0.0 (commit abc123, built 2026-01-02)\n"
		if got := ta.stdout.String(); got != want {
			t.Errorf("stdout = %q, want %q", got, want)
		}
	})

	t.Run("json", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		if err := ta.run("version", "-o", "json"); err != nil {
			t.Fatalf("version error = %v", err)
		}
		var got BuildInfo
		decodeJSON(t, ta.stdout.Bytes(), &got)
		if got != ta.build {
			t.Errorf("BuildInfo = %+v, want %+v", got, ta.build)
		}
	})
}

func TestUnsupportedPlatform(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	exe := filepath.Join(ta.binDir, "strata")
	ta.detectPlatform = func() platform.Platform { return platform.New(types.FamilyUnsupported, exe) }

	for _, args := range [][]string{{"version"}, {"--updater-task"}, {"fetch", "."}} {
		err := ta.run(args...)
		if !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("%v: error = %v, want ErrUnsupportedPlatform", args, err)
		}
	}
	if len(ta.runner.spawns) != 0 {
		t.Errorf("spawns = %v, want none", ta.runner.spawns)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	err := ta.run("version", "-o", "xml")
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("error = %v, want unknown output format", err)
	}
}

func TestRootShowsHelp(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	if err := ta.run(); err != nil {
		t.Fatalf("root error = %v", err)
	}
	out := ta.stdout.String()
	if !strings.Contains(out, "strata materializes project sources") {
		t.Errorf("help missing description:\n%s", out)
	}
	if strings.Contains(out, "updater-task") {
		t.Errorf("help lists internal flags:\n%s", out)
	}
}

func TestUpdaterTaskRole(t *testing.T) {
	ta := newTestApp(t, "latest-strata", "")
	original := filepath.Join(ta.binDir, "strata")
	if err := os.WriteFile(original, []byte("previous"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ta.run("--updater-task"); err != nil {
		t.Fatalf("--updater-task error = %v", err)
	}

	got, err := os.ReadFile(original)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "old" {
		t.Errorf("original content = %q, want the staged binary", got)
	}
	want := [][]string{{ta.binDir, original, "--updater-task-clearance"}}
	if !reflect.DeepEqual(ta.runner.spawns, want) {
		t.Errorf("spawns = %v, want %v", ta.runner.spawns, want)
	}
}

func TestUpdaterTaskRole_NotStaged(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	if err := ta.run("--updater-task"); err != nil {
		t.Fatalf("--updater-task error = %v", err)
	}
	if len(ta.runner.spawns) != 0 {
		t.Errorf("spawns = %v, want none", ta.runner.spawns)
	}
	got, _ := os.ReadFile(filepath.Join(ta.binDir, "strata"))
	if string(got) != "old" {
		t.Errorf("executable modified: %q", got)
	}
}

func TestClearanceRole(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	staged := filepath.Join(ta.binDir, "latest-strata")
	if err := os.WriteFile(staged, []byte("new"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ta.run("--updater-task-clearance"); err != nil {
		t.Fatalf("--updater-task-clearance error = %v", err)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("staged binary still present: %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "Update complete") {
		t.Errorf("stdout = %q, want completion message", ta.stdout.String())
	}
}

func TestInternalFlagsRejectedOnSubcommands(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	if err := ta.run("version", "--updater-task"); err == nil {
		t.Error("expected an unknown flag error")
	}
}

// releaseServer serves release metadata for tag and a linux asset holding
// a strata executable with the given content.
func releaseServer(t *testing.T, tag, binary string) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("strata")
	if err != nil {
		t.Fatalf("zip Create: %v", err)
	}
	if _, err := w.Write([]byte(binary)); err != nil {
		t.Fatalf("zip Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}
	asset := buf.Bytes()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(source.Release{
			TagName: tag,
			HTMLURL: srv.URL + "/releases/" + tag,
			Assets: []source.Asset{
				{Name: "strata-windows.zip", BrowserDownloadURL: srv.URL + "/missing"},
				{Name: "strata-linux.zip", BrowserDownloadURL: srv.URL + "/download/strata-linux.zip", Size: int64(len(asset))},
			},
		})
	})
	mux.HandleFunc("/download/strata-linux.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(asset)))
		_, _ = w.Write(asset)
	})
	return srv
}

func TestUpdateCheck(t *testing.T) {
	srv := releaseServer(t, "v1.2.0", "new")
	ta := newTestApp(t, "strata", srv.URL+"/releases/latest")

	if err := ta.run("update", "--check", "-o", "json"); err != nil {
		t.Fatalf("update --check error = %v", err)
	}
	var got struct {
		Available      bool   `json:"available"`
		CurrentVersion string `json:"current_version"`
		LatestVersion  string `json:"latest_version"`
	}
	decodeJSON(t, ta.stdout.Bytes(), &got)
	if !got.Available || got.CurrentVersion != "1.0.0" || got.LatestVersion != "1.2.0" {
		t.Errorf("info = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(ta.binDir, "latest-strata")); !os.IsNotExist(err) {
		t.Error("--check staged a binary")
	}
}

func TestUpdate(t *testing.T) {
	srv := releaseServer(t, "v1.2.0", "new")
	ta := newTestApp(t, "strata", srv.URL+"/releases/latest")

	if err := ta.run("update", "--yes", "-o", "json"); err != nil {
		t.Fatalf("update error = %v\nstderr: %s", err, ta.stderr.String())
	}

	var got UpdateResult
	decodeJSON(t, ta.stdout.Bytes(), &got)
	if got.Outcome != "handed-off" {
		t.Errorf("outcome = %q, want handed-off", got.Outcome)
	}

	staged := filepath.Join(ta.binDir, "latest-strata")
	content, err := os.ReadFile(staged)
	if err != nil {
		t.Fatalf("staged binary missing: %v", err)
	}
	if string(content) != "new" {
		t.Errorf("staged content = %q, want new", content)
	}
	want := [][]string{{ta.binDir, staged, "--updater-task"}}
	if !reflect.DeepEqual(ta.runner.spawns, want) {
		t.Errorf("spawns = %v, want %v", ta.runner.spawns, want)
	}

	entries, err := os.ReadDir(ta.workDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleared: %v", entries)
	}
}

func TestUpdate_UpToDate(t *testing.T) {
	srv := releaseServer(t, "v1.0.0", "same")
	ta := newTestApp(t, "strata", srv.URL+"/releases/latest")

	if err := ta.run("update", "--yes"); err != nil {
		t.Fatalf("update error = %v", err)
	}
	if !strings.Contains(ta.stdout.String(), "strata 1.0.0 is up to date") {
		t.Errorf("stdout = %q", ta.stdout.String())
	}
	if len(ta.runner.spawns) != 0 {
		t.Errorf("spawns = %v, want none", ta.runner.spawns)
	}
}

func TestUpdate_MetadataError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	ta := newTestApp(t, "strata", srv.URL+"/releases/latest")

	err := ta.run("update", "--yes")
	if err == nil || !strings.Contains(err.Error(), "failed to fetch release info") {
		t.Errorf("error = %v, want release info failure", err)
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestFetchLocal(t *testing.T) {
	ta := newTestApp(t, "strata", "")
	src := filepath.Join(t.TempDir(), "template")
	writeTree(t, src, map[string]string{
		"README.md":    "hello",
		"cmd/main.go":  "package main",
		".git/HEAD":    "ref: refs/heads/main",
		"docs/a/b.txt": "b",
	})
	target := filepath.Join(t.TempDir(), "out")

	if err := ta.run("fetch", src, target, "-o", "json"); err != nil {
		t.Fatalf("fetch error = %v", err)
	}

	var got FetchResult
	decodeJSON(t, ta.stdout.Bytes(), &got)
	if got.Files != 3 || got.Kind != "local-path" || got.Target != target {
		t.Errorf("result = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(target, "docs", "a", "b.txt")); err != nil {
		t.Errorf("nested file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, ".git")); !os.IsNotExist(err) {
		t.Error(".git was copied")
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("local source removed: %v", err)
	}
}

func TestFetchErrors(t *testing.T) {
	t.Run("invalid source", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		err := ta.run("fetch", "not-a-source", filepath.Join(t.TempDir(), "out"))
		if !errors.Is(err, source.ErrInvalidSource) {
			t.Errorf("error = %v, want ErrInvalidSource", err)
		}
	})

	t.Run("non-empty target", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		src := t.TempDir()
		writeTree(t, src, map[string]string{"a.txt": "a"})
		target := t.TempDir()
		writeTree(t, target, map[string]string{"existing.txt": "x"})

		err := ta.run("fetch", src, target)
		if !errors.Is(err, fsutil.ErrNotEmpty) {
			t.Errorf("error = %v, want ErrNotEmpty", err)
		}
	})

	t.Run("target inside source", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		src := t.TempDir()
		writeTree(t, src, map[string]string{"a.txt": "a"})

		err := ta.run("fetch", src, filepath.Join(src, "copy"))
		if err == nil || !strings.Contains(err.Error(), "inside the source directory") {
			t.Errorf("error = %v, want inside source error", err)
		}
	})

	t.Run("missing local directory", func(t *testing.T) {
		ta := newTestApp(t, "strata", "")
		err := ta.run("fetch", filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "out"))
		if err == nil {
			t.Error("expected an error")
		}
	})
}

func TestDefaultTarget(t *testing.T) {
	tests := []struct {
		locator string
		want    string
	}{
		{"https://github.com/adamancini/strata.git", "strata"},
		{"https://github.com/adamancini/strata", "strata"},
		{"git@github.com:adamancini/strata.git", "strata"},
		{"git@github.com:strata.git", "strata"},
		{"/home/user/templates/service/", "service"},
		{`C:\templates\service`, "service"},
		{"./service", "service"},
		{".", ""},
		{"..", ""},
		{"~", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.locator, func(t *testing.T) {
			if got := defaultTarget(tt.locator); got != tt.want {
				t.Errorf("defaultTarget(%q) = %q, want %q", tt.locator, got, tt.want)
			}
		})
	}
}

func TestClean(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	setup := func(t *testing.T) (*testApp, string) {
		ta := newTestApp(t, "strata", "")
		ta.now = func() time.Time { return now }
		dir := t.TempDir()
		old := fmt.Sprintf("%s-source-git-%d", source.TempDirPrefix, now.Add(-2*time.Hour).Unix())
		recent := fmt.Sprintf("%s-source-git-%d", source.TempDirPrefix, now.Add(-time.Minute).Unix())
		writeTree(t, dir, map[string]string{
			old + "/repo/a.txt":    "12345",
			recent + "/repo/b.txt": "1",
			"unrelated/c.txt":      "c",
		})
		return ta, dir
	}

	t.Run("removes stale directories", func(t *testing.T) {
		ta, dir := setup(t)
		if err := ta.run("clean", "--dir", dir, "-o", "json"); err != nil {
			t.Fatalf("clean error = %v", err)
		}
		var got CleanResult
		decodeJSON(t, ta.stdout.Bytes(), &got)
		if len(got.Removed) != 1 || got.Kept != 1 || got.DryRun {
			t.Errorf("result = %+v", got)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 2 {
			t.Errorf("entries left = %d, want 2", len(entries))
		}
	})

	t.Run("dry run", func(t *testing.T) {
		ta, dir := setup(t)
		if err := ta.run("clean", "--dir", dir, "--dry-run"); err != nil {
			t.Fatalf("clean error = %v", err)
		}
		if !strings.Contains(ta.stdout.String(), "Would remove 1 temporary directories") {
			t.Errorf("stdout = %q", ta.stdout.String())
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 3 {
			t.Errorf("entries left = %d, want 3", len(entries))
		}
	})

	t.Run("clears staged binary", func(t *testing.T) {
		ta, dir := setup(t)
		staged := filepath.Join(ta.binDir, "latest-strata")
		if err := os.WriteFile(staged, []byte("new"), 0o755); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := ta.run("clean", "--dir", dir, "-o", "json"); err != nil {
			t.Fatalf("clean error = %v", err)
		}
		var got CleanResult
		decodeJSON(t, ta.stdout.Bytes(), &got)
		if got.StagedBinary != staged {
			t.Errorf("StagedBinary = %q, want %q", got.StagedBinary, staged)
		}
		if _, err := os.Stat(staged); !os.IsNotExist(err) {
			t.Errorf("staged binary still present: %v", err)
		}
		if strings.Contains(ta.stderr.String(), "Update complete") {
			t.Errorf("clean reported a finished update:\n%s", ta.stderr.String())
		}
	})

	t.Run("negative age", func(t *testing.T) {
		for _, args := range [][]string{
			{"clean", "--older-than=-1h"},
			{"clean", "--older-than=-1h", "--dry-run"},
		} {
			ta, dir := setup(t)
			err := ta.run(append(args, "--dir", dir)...)
			if err == nil || !strings.Contains(err.Error(), "must not be negative") {
				t.Errorf("%v: error = %v, want negative age error", args, err)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 3 {
				t.Errorf("%v: entries left = %d, want 3", args, len(entries))
			}
		}
	})
}
