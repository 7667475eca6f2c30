package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.lifnet/
// MUST be called for any test that creates stores
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// smallRun is a quick network with enough spontaneous activity to spike.
func smallRun(root string, extra ...string) []string {
	args := []string{"run", "--root", root,
		"--neurons", "10", "--duration", "20", "--p-s", "0.01", "--seed", "42"}
	return append(args, extra...)
}

func latestRunID(t *testing.T, root string) string {
	t.Helper()
	out, _, err := execute(t, "runs", "--root", root, "--json")
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	var listing struct {
		Runs []struct {
			ID     string `json:"id"`
			Seed   string `json:"seed"`
			Spikes int    `json:"spikes"`
		} `json:"runs"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("decoding runs output: %v\n%s", err, out)
	}
	if listing.Count == 0 {
		t.Fatal("no runs stored")
	}
	return listing.Runs[0].ID
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"version", "run", "export", "stats", "runs", "plot", "archive", "config", "mcp-server"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"json", "root", "config", "log-level"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestVersionCmd_JSON(t *testing.T) {
	out, _, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestRunCmd_WritesRasterAndStores(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	output := filepath.Join(tmpDir, "spikes.csv")

	out, stderr, err := execute(t, smallRun(tmpDir, "--output", output, "--label", "first")...)
	if err != nil {
		t.Fatalf("run failed: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(out, "stored (seed 42)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Exported "+output) {
		t.Errorf("missing export line:\n%s", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading raster: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, line := range lines {
		if strings.Count(line, ",") != 1 {
			t.Fatalf("malformed raster line %q", line)
		}
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".lifnet", "lifnet.db")); err != nil {
		t.Errorf("run database not created: %v", err)
	}

	showOut, _, err := execute(t, "runs", "show", latestRunID(t, tmpDir)[:8], "--root", tmpDir, "--json")
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	var run map[string]any
	if err := json.Unmarshal([]byte(showOut), &run); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if run["label"] != "first" || run["seed"] != "42" {
		t.Errorf("unexpected run: %v", run)
	}
	if int(run["spikes"].(float64)) != len(lines) {
		t.Errorf("stored %v spikes, raster has %d lines", run["spikes"], len(lines))
	}
}

func TestRunCmd_Progress(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	_, stderr, err := execute(t, smallRun(tmpDir, "--no-export", "--no-store")...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"\rStep 0/200", "\rStep 100/200", "\rStep 200/200\n"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q: %q", want, stderr)
		}
	}

	_, quiet, err := execute(t, smallRun(tmpDir, "--no-export", "--no-store", "--quiet")...)
	if err != nil {
		t.Fatalf("quiet run failed: %v", err)
	}
	if strings.Contains(quiet, "Step") {
		t.Errorf("--quiet should suppress progress: %q", quiet)
	}
}

func TestRunCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, stderr, err := execute(t, smallRun(tmpDir, "--no-export", "--json")...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.Contains(stderr, "Step") {
		t.Errorf("--json should suppress progress: %q", stderr)
	}
	var result struct {
		Run struct {
			Seed    string `json:"seed"`
			Neurons int    `json:"neurons"`
			Steps   int    `json:"steps"`
		} `json:"run"`
		Stored bool `json:"stored"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if result.Run.Seed != "42" || result.Run.Neurons != 10 || result.Run.Steps != 200 || !result.Stored {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunCmd_SameSeedSameRaster(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	a := filepath.Join(tmpDir, "a.csv")
	b := filepath.Join(tmpDir, "b.csv")

	if _, _, err := execute(t, smallRun(tmpDir, "--output", a, "--no-store", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, smallRun(tmpDir, "--output", b, "--no-store", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if len(da) == 0 || !bytes.Equal(da, db) {
		t.Error("same seed should produce byte-identical rasters")
	}
}

func TestRunCmd_ExportFailure(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, _, err := execute(t, smallRun(tmpDir, "--output", filepath.Join(tmpDir, "missing", "spikes.csv"), "--quiet")...)
	if err == nil || !strings.Contains(err.Error(), "exporting spikes") {
		t.Fatalf("expected export error, got %v", err)
	}
	if !strings.Contains(out, "stored (seed 42)") {
		t.Errorf("run summary should still print:\n%s", out)
	}
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := [][]string{
		{"--neurons", "0"},
		{"--connection-prob", "1.5"},
		{"--synapse", "electrical"},
		{"--format", "xlsx"},
	}
	for _, extra := range tests {
		t.Run(strings.Join(extra, "="), func(t *testing.T) {
			_, _, err := execute(t, smallRun(tmpDir, append(extra, "--no-store", "--quiet")...)...)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExportAndStatsCmds(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, _, err := execute(t, smallRun(tmpDir, "--no-export", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	id := latestRunID(t, tmpDir)

	jsonl := filepath.Join(tmpDir, "spikes.jsonl")
	out, _, err := execute(t, "export", id[:8], "--root", tmpDir, "-o", jsonl)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "(jsonl,") {
		t.Errorf("format should follow extension: %s", out)
	}

	statsOut, _, err := execute(t, "stats", id, "--root", tmpDir, "--json", "--top", "3")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	var sum struct {
		Neurons     int     `json:"neurons"`
		DurationMs  float64 `json:"duration_ms"`
		TotalSpikes int     `json:"total_spikes"`
		PerNeuron   []struct {
			Spikes int `json:"spikes"`
		} `json:"per_neuron"`
	}
	if err := json.Unmarshal([]byte(statsOut), &sum); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sum.Neurons != 10 || sum.DurationMs != 20 || sum.TotalSpikes == 0 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if len(sum.PerNeuron) != 3 {
		t.Fatalf("expected top 3 neurons, got %d", len(sum.PerNeuron))
	}
	if sum.PerNeuron[0].Spikes < sum.PerNeuron[2].Spikes {
		t.Error("top neurons should be sorted by spikes")
	}

	fileOut, _, err := execute(t, "stats", "--input", jsonl, "--duration", "20", "--neurons", "10")
	if err != nil {
		t.Fatalf("stats --input failed: %v", err)
	}
	if !strings.Contains(fileOut, "Fano factor") {
		t.Errorf("unexpected stats output:\n%s", fileOut)
	}

	if _, _, err := execute(t, "stats", "--input", jsonl); err == nil {
		t.Error("expected error without --duration")
	}
}

func TestRunsDeleteCmd(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, _, err := execute(t, smallRun(tmpDir, "--no-export", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	id := latestRunID(t, tmpDir)

	if _, _, err := execute(t, "runs", "delete", id, "--root", tmpDir); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	out, _, err := execute(t, "runs", "--root", tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Errorf("expected empty listing:\n%s", out)
	}
	if _, _, err := execute(t, "runs", "show", id, "--root", tmpDir); err == nil {
		t.Error("expected error for deleted run")
	}
}

func TestArchiveCmds_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, _, err := execute(t, smallRun(tmpDir, "--no-export", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	id := latestRunID(t, tmpDir)

	out, _, err := execute(t, "archive", "create", "--root", tmpDir, "--json", "--note", "baseline run")
	if err != nil {
		t.Fatalf("archive create failed: %v", err)
	}
	var created struct {
		Path     string `json:"path"`
		RunCount int    `json:"run_count"`
	}
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.RunCount != 1 {
		t.Errorf("RunCount = %d, want 1", created.RunCount)
	}

	if out, _, err := execute(t, "archive", "verify", created.Path); err != nil || !strings.Contains(out, "Archive OK") {
		t.Fatalf("verify failed: %v\n%s", err, out)
	}

	listOut, _, err := execute(t, "archive", "list", "--root", tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(listOut, filepath.Base(created.Path)) || !strings.Contains(listOut, "baseline run") {
		t.Errorf("archive list missing %s and its note:\n%s", created.Path, listOut)
	}

	if _, _, err := execute(t, "runs", "delete", id, "--root", tmpDir); err != nil {
		t.Fatal(err)
	}
	restoreOut, _, err := execute(t, "archive", "restore", created.Path, "--root", tmpDir)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !strings.Contains(restoreOut, "Restored 1 runs") {
		t.Errorf("unexpected restore output: %s", restoreOut)
	}
	if got := latestRunID(t, tmpDir); got != id {
		t.Errorf("restored run ID = %s, want %s", got, id)
	}

	if _, _, err := execute(t, "archive", "restore", created.Path, "--root", tmpDir, "--mode", "upsert"); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestArchiveCreate_RejectsOutsidePath(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	_, _, err := execute(t, "archive", "create", "--root", tmpDir, "-o", filepath.Join(t.TempDir(), "x.lna"))
	if err == nil || !strings.Contains(err.Error(), "rejected") {
		t.Errorf("expected rejected path, got %v", err)
	}
}

func TestConfigCmds(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "lifnet.yaml")

	if _, _, err := execute(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, _, err := execute(t, "config", "init", "--config", path); err == nil {
		t.Error("expected error when config exists")
	}
	if _, _, err := execute(t, "config", "init", "--config", path, "--force"); err != nil {
		t.Errorf("--force should overwrite: %v", err)
	}

	out, _, err := execute(t, "config", "show", "--config", path, "--log-level", "debug")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"neurons: 100", "synapse: conductance", "level: debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_UsesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	path := filepath.Join(tmpDir, "lifnet.yaml")
	content := "network:\n  neurons: 7\nsimulation:\n  duration: 10\n  seed: 5\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, "run", "--root", tmpDir, "--config", path, "--no-export", "--no-store", "--json")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var result struct {
		Run struct {
			Seed    string `json:"seed"`
			Neurons int    `json:"neurons"`
			Steps   int    `json:"steps"`
		} `json:"run"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Run.Neurons != 7 || result.Run.Steps != 100 || result.Run.Seed != "5" {
		t.Errorf("config file not applied: %+v", result.Run)
	}
}

func TestPlotCmd(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, _, err := execute(t, smallRun(tmpDir, "--no-export", "--quiet")...); err != nil {
		t.Fatal(err)
	}
	id := latestRunID(t, tmpDir)

	showOut, _, err := execute(t, "runs", "show", id, "--root", tmpDir, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var run struct {
		Edges int `json:"edges"`
	}
	if err := json.Unmarshal([]byte(showOut), &run); err != nil {
		t.Fatal(err)
	}

	dot, _, err := execute(t, "plot", id, "--root", tmpDir, "--format", "dot", "-o", "-")
	if err != nil {
		t.Fatalf("plot dot failed: %v", err)
	}
	if got := strings.Count(dot, "->"); got != run.Edges {
		t.Errorf("DOT has %d edges, run recorded %d", got, run.Edges)
	}

	svgPath := filepath.Join(tmpDir, "raster.svg")
	out, _, err := execute(t, "plot", id[:8], "--root", tmpDir, "-o", svgPath)
	if err != nil {
		t.Fatalf("plot svg failed: %v", err)
	}
	if !strings.Contains(out, "Plot written to "+svgPath) {
		t.Errorf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("<svg")) {
		t.Error("format should follow the .svg extension")
	}

	if _, _, err := execute(t, "plot", "--root", tmpDir); err == nil {
		t.Error("expected error without a run ID")
	}
	if _, _, err := execute(t, "plot", id, "--root", tmpDir, "--format", "png", "-o", "-"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunCmd_GlobalStore(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, _, err := execute(t, smallRun(tmpDir, "--no-export", "--quiet", "--global")...); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "home", ".lifnet", "lifnet.db")); err != nil {
		t.Errorf("global database not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".lifnet", "lifnet.db")); !os.IsNotExist(err) {
		t.Errorf("project database should not exist, stat err = %v", err)
	}

	out, _, err := execute(t, "runs", "--root", tmpDir, "--global", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"count": 1`) {
		t.Errorf("global store should list the run:\n%s", out)
	}
}
