package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FilesWrittenTotal.WithLabelValues("memory", "written"))
	FilesWrittenTotal.WithLabelValues("memory", "written").Inc()
	after := testutil.ToFloat64(FilesWrittenTotal.WithLabelValues("memory", "written"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %v", after-before)
	}

	ProcessorsAllocated.WithLabelValues("OCN").Set(11)
	if got := testutil.ToFloat64(ProcessorsAllocated.WithLabelValues("OCN")); got != 11 {
		t.Errorf("expected 11, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	FilesRenderedTotal.WithLabelValues("nems.configure").Inc()

	path := filepath.Join(t.TempDir(), "nemsgen.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `nemsgen_render_files_total{file="nems.configure"}`) {
		t.Errorf("textfile missing render counter:\n%s", data)
	}

	if err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Error("expected error for missing directory")
	}
}
