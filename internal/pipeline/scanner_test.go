package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/annoscan/internal/classfile/classfiletest"
	"github.com/nao1215/annoscan/internal/classpath"
	"github.com/nao1215/annoscan/internal/model"
)

func TestScanner_Scan(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	classfiletest.WriteFile(t, root, "ns/annotation/scanner/Foo.class",
		annotated("ns/annotation/scanner/Foo", "Lns/annotation/scanner/Marker;"))
	classfiletest.WriteFile(t, root, "ns/annotation/scanner/Plain.class",
		annotated("ns/annotation/scanner/Plain"))
	classfiletest.WriteFile(t, root, "ns/annotation/scanner/Broken.class", []byte{0xCA, 0xFE})
	classfiletest.WriteFile(t, root, "ns/annotation/scanner/sub/Bar.class",
		annotated("ns/annotation/scanner/sub/Bar", "Lns/annotation/scanner/Marker;", "Lns/annotation/scanner/Marker;"))

	enumerator := classpath.NewEnumerator([]string{root})
	t.Cleanup(func() { _ = enumerator.Close() })

	scanner := NewScanner(enumerator)

	t.Run("finds annotated classes in discovery order", func(t *testing.T) {
		t.Parallel()

		report, err := scanner.Scan(context.Background(), "ns.annotation.scanner", "ns.annotation.scanner.Marker")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if report.Candidates != 4 {
			t.Errorf("expected 4 candidates, got %d", report.Candidates)
		}
		if report.Parsed != 3 {
			t.Errorf("expected 3 parsed, got %d", report.Parsed)
		}
		if len(report.Failures) != 1 || report.Failures[0].Kind != model.FailureMalformed {
			t.Errorf("expected one malformed failure, got %+v", report.Failures)
		}

		want := []string{
			"ns.annotation.scanner.Foo",
			"ns.annotation.scanner.sub.Bar",
			"ns.annotation.scanner.sub.Bar",
		}
		if len(report.Matches) != len(want) {
			t.Fatalf("expected %d matches, got %+v", len(want), report.Matches)
		}
		for i, m := range report.Matches {
			if m.ClassName != want[i] {
				t.Errorf("match %d: expected %s, got %s", i, want[i], m.ClassName)
			}
		}
		if got := report.PerformedSteps; len(got) != 3 {
			t.Errorf("expected 3 performed steps, got %v", got)
		}
		if len(report.Roots) != 1 || report.Roots[0] != root {
			t.Errorf("expected roots [%s], got %v", root, report.Roots)
		}
	})

	t.Run("unknown namespace yields an empty report", func(t *testing.T) {
		t.Parallel()

		report, err := scanner.Scan(context.Background(), "does.not.exist", "ns.annotation.scanner.Marker")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Candidates != 0 || len(report.Matches) != 0 {
			t.Errorf("expected an empty report, got %+v", report)
		}
	})

	t.Run("invalid namespace", func(t *testing.T) {
		t.Parallel()

		report, err := scanner.Scan(context.Background(), "ns..scanner", "X")
		if !errors.Is(err, model.ErrInvalidNamespace) {
			t.Errorf("expected ErrInvalidNamespace, got %v", err)
		}
		if report == nil || report.Error == nil {
			t.Error("expected a report carrying the error")
		}
	})

	t.Run("batch over namespaces", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(scanner.Scan, WithConcurrency(2))
		reports, err := bp.ProcessBatch(context.Background(),
			[]string{"ns.annotation.scanner.sub", "ns.annotation.scanner"},
			"ns.annotation.scanner.Marker")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(reports[0].Matches) != 2 {
			t.Errorf("expected 2 matches in sub, got %d", len(reports[0].Matches))
		}
		if len(reports[1].Matches) != 3 {
			t.Errorf("expected 3 matches overall, got %d", len(reports[1].Matches))
		}
	})
}

func TestScanner_Options(t *testing.T) {
	t.Parallel()

	s := NewScanner(newMemSource(), WithReadJobs(4), WithElementValues(true), WithScanContinueOnError(true), WithReadJobs(0))

	if s.jobs != 4 {
		t.Errorf("expected 4 jobs, got %d", s.jobs)
	}
	if !s.renderValues {
		t.Error("expected element values to be rendered")
	}
	if !s.continueOnError {
		t.Error("expected continueOnError")
	}
	if names := s.Pipeline("A").StepNames(); len(names) != 3 || names[0] != "discover" || names[2] != "match" {
		t.Errorf("unexpected steps %v", names)
	}
}
