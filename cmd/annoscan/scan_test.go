package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/annoscan/internal/config"
	"github.com/nao1215/annoscan/internal/database"
	"github.com/nao1215/annoscan/internal/model"
	"github.com/nao1215/annoscan/internal/report"
)

// TestNewScanCmd tests the scan command flags.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{name: "annotation", shorthand: "a", defValue: ""},
		{name: "classpath", shorthand: "p", defValue: "[]"},
		{name: "exclude", shorthand: "x", defValue: "[]"},
		{name: "no-recursive", defValue: "false"},
		{name: "jobs", defValue: "1"},
		{name: "batch", shorthand: "b", defValue: "1"},
		{name: "config", shorthand: "c", defValue: ""},
		{name: "json", shorthand: "j", defValue: "false"},
		{name: "markdown", shorthand: "m", defValue: "false"},
		{name: "output", shorthand: "o", defValue: ""},
		{name: "summary", shorthand: "s", defValue: "false"},
		{name: "values", defValue: "false"},
		{name: "no-history", defValue: "false"},
		{name: "db-dir", defValue: config.XDGDataDir()},
		{name: "log-json", defValue: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func noEnv(string) string { return "" }

// TestBuildConfig tests flag, environment and config file merging.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("reads flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{
			"-a", testAnno,
			"-p", "/classes", "-p", "/libs/api.jar",
			"-x", "*Test.class",
			"--no-recursive",
			"--jobs", "3",
			"-b", "2",
			"--json",
			"-o", "out.json",
			"--values",
			"--no-history",
			"--db-dir", "/tmp/db",
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"com.example"}, noEnv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Annotation != testAnno {
			t.Errorf("unexpected annotation %q", cfg.Annotation)
		}
		if len(cfg.ClassPath) != 2 || cfg.ClassPath[1] != "/libs/api.jar" {
			t.Errorf("unexpected class path %v", cfg.ClassPath)
		}
		if len(cfg.Exclude) != 1 || cfg.Recursive {
			t.Errorf("unexpected exclude/recursive %v %v", cfg.Exclude, cfg.Recursive)
		}
		if cfg.Jobs != 3 || cfg.BatchSize != 2 {
			t.Errorf("unexpected jobs/batch %d %d", cfg.Jobs, cfg.BatchSize)
		}
		if !cfg.JSONReport || cfg.ReportFile != "out.json" || !cfg.ShowValues {
			t.Errorf("unexpected report settings %+v", cfg)
		}
		if cfg.SaveToDB || cfg.DBDir != "/tmp/db" {
			t.Errorf("unexpected history settings %v %q", cfg.SaveToDB, cfg.DBDir)
		}
		if len(cfg.Namespaces) != 1 || cfg.Namespaces[0] != "com.example" {
			t.Errorf("unexpected namespaces %v", cfg.Namespaces)
		}
	})

	t.Run("falls back to the environment", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-a", testAnno}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		getenv := func(key string) string {
			if key == config.ClassPathEnv {
				return "/env/a" + string(os.PathListSeparator) + "/env/b.jar"
			}
			return ""
		}
		cfg, err := buildConfig(cmd, []string{"com.example"}, getenv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.ClassPath) != 2 || cfg.ClassPath[0] != "/env/a" {
			t.Errorf("unexpected class path %v", cfg.ClassPath)
		}
	})

	t.Run("applies an explicit config file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		configPath := filepath.Join(dir, "annoscan.yaml")
		content := "classpath:\n  - classes\nannotation: com.example.FromFile\njobs: 6\nexclude:\n  - \"*Test.class\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath, "--jobs", "2"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd, []string{"com.example"}, noEnv)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.ClassPath) != 1 || cfg.ClassPath[0] != filepath.Join(dir, "classes") {
			t.Errorf("unexpected class path %v", cfg.ClassPath)
		}
		if cfg.Annotation != "com.example.FromFile" {
			t.Errorf("unexpected annotation %q", cfg.Annotation)
		}
		if cfg.Jobs != 2 {
			t.Errorf("expected --jobs to win, got %d", cfg.Jobs)
		}
		if cfg.File == nil || len(cfg.Exclude) != 1 {
			t.Errorf("expected config file to be applied, got %+v", cfg)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewScanCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd, []string{"com.example"}, noEnv)
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

func TestOrderedEmitter(t *testing.T) {
	t.Parallel()

	reports := make([]*model.ScanReport, 4)
	for i := range reports {
		reports[i] = model.NewScanReport(model.Namespace("ns"+string(rune('a'+i))), testAnno, nil)
	}

	var got []string
	e := newOrderedEmitter(len(reports), func(r *model.ScanReport) {
		got = append(got, r.Namespace.String())
	})

	e.add(2, reports[2])
	e.add(1, reports[1])
	if len(got) != 0 {
		t.Fatalf("expected nothing before index 0, got %v", got)
	}
	e.add(0, reports[0])
	if strings.Join(got, ",") != "nsa,nsb,nsc" {
		t.Fatalf("unexpected order %v", got)
	}

	// Index 3 never arrives; flush emits nothing more.
	e.flush()
	if len(got) != 3 {
		t.Errorf("unexpected emission after flush: %v", got)
	}

	t.Run("flush releases reports after a gap", func(t *testing.T) {
		t.Parallel()

		var order []string
		e := newOrderedEmitter(3, func(r *model.ScanReport) {
			order = append(order, r.Namespace.String())
		})
		e.add(2, reports[2])
		e.flush()
		if len(order) != 1 || order[0] != "nsc" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

const expectedMatches = `ClassName      : com.example.Foo
AnnotationName : com.example.Anno
ClassName      : com.example.sub.Bar
AnnotationName : com.example.Anno
ClassName      : com.example.sub.Bar
AnnotationName : com.example.Anno
`

func TestRunScanCmd(t *testing.T) {
	t.Parallel()

	root := writeClasses(t)

	t.Run("prints label pairs in discovery order", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		stdout, stderr, err := execute(t, "scan", "-a", testAnno, "-p", root, "--db-dir", dbDir, "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != expectedMatches {
			t.Errorf("unexpected output:\n%s", stdout)
		}
		if !strings.Contains(stderr, "skipping class file") || !strings.Contains(stderr, "Broken.class") {
			t.Errorf("expected a warning for the broken class, got %q", stderr)
		}

		db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("expected history database: %v", err)
		}
		defer db.Close()

		saved, err := db.GetLatestScanReport(t.Context(), model.TargetKey("com.example", testAnno))
		if err != nil || saved == nil {
			t.Fatalf("expected a saved report, got %v %v", saved, err)
		}
		if len(saved.Matches) != 3 || len(saved.Failures) != 1 {
			t.Errorf("unexpected saved report %+v", saved)
		}
		if saved.RunID == "" {
			t.Error("expected the report to carry a run ID")
		}
	})

	t.Run("no-history skips the database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "db")
		if _, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--db-dir", dbDir, "--no-history", "com.example"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(dbDir); !os.IsNotExist(err) {
			t.Error("expected no database directory")
		}
	})

	t.Run("namespaces are reported in argument order", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--no-history", "-b", "2",
			"com.example.sub", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sub := "ClassName      : com.example.sub.Bar\nAnnotationName : com.example.Anno\n"
		if stdout != sub+sub+expectedMatches {
			t.Errorf("unexpected output:\n%s", stdout)
		}
	})

	t.Run("exclude and non-recursive", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--no-history",
			"--no-recursive", "-x", "Foo*", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected no matches, got:\n%s", stdout)
		}
	})

	t.Run("values and summary", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--no-history",
			"--values", "--summary", "--jobs", "4", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{`@com.example.Anno(value="foo")`, "Candidates:  4", "Failures:    1"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected %q in output:\n%s", want, stdout)
			}
		}
	})

	t.Run("json report to file", func(t *testing.T) {
		t.Parallel()

		outPath := filepath.Join(t.TempDir(), "reports", "scan.json")
		stdout, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--no-history", "--json", "-o", outPath, "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}

		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var jr report.JSONReport
		if err := json.Unmarshal(data, &jr); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if jr.Summary.Matches != 3 || jr.Summary.MatchedClasses != 2 {
			t.Errorf("unexpected summary %+v", jr.Summary)
		}
		if jr.Version == "" {
			t.Error("expected a version")
		}
	})

	t.Run("unknown namespace is an empty success", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--no-history", "org.missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected no output, got %q", stdout)
		}
	})
}

func TestRunScanCmdErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{
			name: "no namespace",
			args: []string{"scan", "-a", testAnno, "-p", "/classes"},
			want: config.ErrNoNamespace,
		},
		{
			name: "invalid namespace",
			args: []string{"scan", "-a", testAnno, "-p", "/classes", "com..example"},
			want: config.ErrInvalidNamespace,
		},
		{
			name: "conflicting formats",
			args: []string{"scan", "-a", testAnno, "-p", "/classes", "--json", "--markdown", "com.example"},
			want: config.ErrConflictingReportFormats,
		},
		{
			name: "zero jobs",
			args: []string{"scan", "-a", testAnno, "-p", "/classes", "--jobs", "0", "com.example"},
			want: config.ErrInvalidJobs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
