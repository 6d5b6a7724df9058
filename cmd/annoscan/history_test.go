package main

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/annoscan/internal/classfile/classfiletest"
	"github.com/nao1215/annoscan/internal/config"
	"github.com/nao1215/annoscan/internal/database"
	"github.com/nao1215/annoscan/internal/model"
)

// TestNewHistoryCmd tests the history command creation.
func TestNewHistoryCmd(t *testing.T) {
	t.Parallel()

	cmd := NewHistoryCmd()

	if cmd.Use != "history [namespace]" {
		t.Errorf("expected use 'history [namespace]', got %q", cmd.Use)
	}

	for _, name := range []string{"annotation", "list", "list-targets", "class", "with-scan-id", "since", "run", "json", "markdown", "db-dir"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected %s flag", name)
		}
	}
}

// scanTwice stores two scans of com.example in a fresh database. The second
// scan sees one extra annotated class.
func scanTwice(t *testing.T) string {
	t.Helper()

	root := writeClasses(t)
	dbDir := t.TempDir()

	if _, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--db-dir", dbDir, "com.example"); err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	classfiletest.WriteFile(t, root, "com/example/Added.class",
		classfiletest.New("com/example/Added").
			Annotations(classfiletest.Anno(testAnnoDesc)).
			Bytes())

	if _, _, err := execute(t, "scan", "-a", testAnno, "-p", root, "--db-dir", dbDir, "com.example"); err != nil {
		t.Fatalf("second scan failed: %v", err)
	}
	return dbDir
}

func TestRunHistoryCmd(t *testing.T) {
	t.Parallel()

	dbDir := scanTwice(t)

	t.Run("compares the latest two scans", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "[+] com.example.Added") {
			t.Errorf("expected added class in output:\n%s", stdout)
		}
		if strings.Contains(stdout, "[-]") {
			t.Errorf("expected no removed classes:\n%s", stdout)
		}
	})

	t.Run("json comparison", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "--json", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var diff model.HistoryDiff
		if err := json.Unmarshal([]byte(stdout), &diff); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(diff.Added) != 1 || diff.Added[0] != "com.example.Added" {
			t.Errorf("unexpected added classes %v", diff.Added)
		}
		if diff.Target != model.TargetKey("com.example", testAnno) {
			t.Errorf("unexpected target %q", diff.Target)
		}
	})

	t.Run("markdown comparison", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "--markdown", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "com.example.Added") {
			t.Errorf("expected added class in output:\n%s", stdout)
		}
	})

	t.Run("lists scans of a target", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "--list", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(2 scans)") {
			t.Errorf("expected two scans:\n%s", stdout)
		}
	})

	t.Run("lists targets", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "--list-targets")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "com.example@"+testAnno) {
			t.Errorf("expected target in output:\n%s", stdout)
		}
	})

	t.Run("finds a class", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "--class", "com.example.Foo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Scans matching com.example.Foo (2)") {
			t.Errorf("expected two sightings:\n%s", stdout)
		}

		stdout, _, err = execute(t, "history", "--db-dir", dbDir, "--class", "com.example.Plain")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "was not matched") {
			t.Errorf("expected no sightings:\n%s", stdout)
		}
	})

	t.Run("compares with a scan id", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "-i", "1", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "[+] com.example.Added") {
			t.Errorf("expected added class in output:\n%s", stdout)
		}

		_, _, err = execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "-i", "99", "com.example")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}

		_, _, err = execute(t, "history", "--db-dir", dbDir, "-a", "com.example.Other", "-i", "1", "com.example")
		if err == nil {
			t.Error("expected an error for a target without history")
		}
	})

	t.Run("since", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "--since", "2000-01-01", "com.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "[+] com.example.Added") {
			t.Errorf("expected added class in output:\n%s", stdout)
		}

		_, _, err = execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "--since", "01/02/2026", "com.example")
		if err == nil || !strings.Contains(err.Error(), "invalid date format") {
			t.Errorf("expected date format error, got %v", err)
		}
	})

	t.Run("lists the reports of a run", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		metas, err := db.GetScanHistoryWithMetadata(t.Context(), model.TargetKey("com.example", testAnno))
		_ = db.Close()
		if err != nil || len(metas) != 2 {
			t.Fatalf("expected two stored reports, got %d (%v)", len(metas), err)
		}
		if metas[0].RunID == "" || metas[0].RunID == metas[1].RunID {
			t.Fatalf("expected distinct run IDs, got %q and %q", metas[0].RunID, metas[1].RunID)
		}

		stdout, _, err := execute(t, "history", "--db-dir", dbDir, "--run", metas[0].RunID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "(1 reports)") || !strings.Contains(stdout, "com.example@"+testAnno) {
			t.Errorf("unexpected output:\n%s", stdout)
		}

		_, _, err = execute(t, "history", "--db-dir", dbDir, "--run", "not-a-uuid")
		if err == nil || !strings.Contains(err.Error(), "invalid run ID") {
			t.Errorf("expected invalid run ID error, got %v", err)
		}
	})

	t.Run("unscanned target", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", dbDir, "-a", testAnno, "com.example.sub")
		if err == nil || !strings.Contains(err.Error(), "no scan history") {
			t.Errorf("expected no history error, got %v", err)
		}
	})
}

func TestRunHistoryCmdErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "none")
		_, _, err := execute(t, "history", "--db-dir", dbDir, "--list-targets")
		if err == nil || !strings.Contains(err.Error(), "failed to open database") {
			t.Errorf("expected open error, got %v", err)
		}
	})

	t.Run("conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", t.TempDir(), "-a", testAnno, "--json", "--markdown", "com.example")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected %v, got %v", config.ErrConflictingReportFormats, err)
		}
	})

	t.Run("annotation required", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, "history", "--db-dir", t.TempDir(), "com.example")
		if err == nil || !strings.Contains(err.Error(), "annotation is required") {
			t.Errorf("expected annotation error, got %v", err)
		}
	})
}

func TestDisplayTarget(t *testing.T) {
	t.Parallel()

	if got := displayTarget("@com.example.Anno"); got != "(root)@com.example.Anno" {
		t.Errorf("expected root display, got %q", got)
	}
	if got := displayTarget("com.example@com.example.Anno"); got != "com.example@com.example.Anno" {
		t.Errorf("expected unchanged target, got %q", got)
	}
}
