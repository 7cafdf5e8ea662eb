package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flexinfer/nemsgen/internal/manifest"
)

const shinnecock = "../manifest/testdata/shinnecock.json"

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	cmd := a.root()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.ExecuteContext(context.Background())
	a.close(context.Background())
	return out.String(), errOut.String(), err
}

func TestRender(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		out, _, err := run(t, "render", shinnecock, "--file", "config.rc")
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		want := "atm_dir: forcings\n" +
			"atm_nam: wind_atm_fin_ch_time_vec.nc\n" +
			"wav_dir: forcings\n" +
			"wav_nam: ww3.Constant.20151214_sxy_ike_date.nc\n"
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("config.rc mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("all files", func(t *testing.T) {
		out, _, err := run(t, "render", shinnecock)
		if err != nil {
			t.Fatalf("render failed: %v", err)
		}
		for _, header := range []string{"==> nems.configure <==", "==> config.rc <==", "==> model_configure <=="} {
			if !strings.Contains(out, header) {
				t.Errorf("output is missing %q", header)
			}
		}
		if !strings.Contains(out, "PE_MEMBER01:             784") {
			t.Errorf("model_configure should allocate 784 processors:\n%s", out)
		}
	})

	t.Run("unknown file", func(t *testing.T) {
		if _, _, err := run(t, "render", shinnecock, "--file", "atm.rc"); err == nil {
			t.Error("expected error for unknown file")
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		if _, _, err := run(t, "render", filepath.Join(t.TempDir(), "none.json")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	out, _, err := run(t, "write", shinnecock, "--output", dir, "--include-version")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var names []string
	for _, loc := range strings.Fields(out) {
		names = append(names, filepath.Base(loc))
	}
	want := []string{"nems.configure", "config.rc", "model_configure", "atm_namelist.rc"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("written files mismatch (-want +got):\n%s", diff)
	}

	content, err := os.ReadFile(filepath.Join(dir, "nems.configure"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(content), "# `nems.configure` generated with nemsgen "+Version+"\n") {
		t.Errorf("missing version header:\n%s", content)
	}
	if _, err := os.Stat(filepath.Join(dir, "atm_namelist.rc")); err != nil {
		t.Errorf("atm_namelist.rc not created: %v", err)
	}

	t.Run("existing files are kept", func(t *testing.T) {
		_, stderr, err := run(t, "write", shinnecock, "--output", dir)
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if !strings.Contains(stderr, "skipping existing file") {
			t.Errorf("expected skip warnings, got:\n%s", stderr)
		}
		again, _ := os.ReadFile(filepath.Join(dir, "nems.configure"))
		if !bytes.Equal(content, again) {
			t.Error("existing file was modified without --overwrite")
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		_, stderr, err := run(t, "write", shinnecock, "--output", dir, "--overwrite")
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if !strings.Contains(stderr, "overwriting existing file") {
			t.Errorf("expected overwrite warnings, got:\n%s", stderr)
		}
		again, _ := os.ReadFile(filepath.Join(dir, "nems.configure"))
		if strings.HasPrefix(string(again), "#") {
			t.Error("overwritten file should not carry a version header")
		}
	})

	t.Run("no atm namelist", func(t *testing.T) {
		other := t.TempDir()
		if _, _, err := run(t, "write", shinnecock, "--output", other, "--no-atm-namelist"); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(other, "atm_namelist.rc")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("atm_namelist.rc should not exist: %v", err)
		}
	})

	t.Run("presign unsupported", func(t *testing.T) {
		_, _, err := run(t, "write", shinnecock, "--backend", "memory", "--presign", "1h")
		if err == nil || !strings.Contains(err.Error(), "presign") {
			t.Errorf("expected presign error, got %v", err)
		}
	})

	t.Run("output with a bucket backend", func(t *testing.T) {
		if _, _, err := run(t, "write", shinnecock, "--output", dir, "--backend", "memory"); err == nil {
			t.Error("expected error for --output with a non-local backend")
		}
	})

	t.Run("local backend overrides environment", func(t *testing.T) {
		t.Setenv("NEMSGEN_BACKEND", "s3")
		other := t.TempDir()
		if _, _, err := run(t, "write", shinnecock, "--backend", "local", "--output", other); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(other, "nems.configure")); err != nil {
			t.Errorf("nems.configure not written locally: %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "validate", shinnecock)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	for _, row := range []string{
		"MED    implicit  2           0 1",
		"OCN    adcirc    11          2 12",
		"HYD    nwm       769         13 781",
		"TOTAL            784",
	} {
		if !strings.Contains(out, row) {
			t.Errorf("output is missing row %q:\n%s", row, out)
		}
	}
	if !strings.Contains(out, "is valid: 784 processors over 24h0m0s") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	t.Run("failing check", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "system.json")
		doc := `{
  "start": "2020-06-01",
  "end": "2020-06-02",
  "interval": "1h",
  "models": [{"implementation": "adcirc", "processors": 4}],
  "checks": [{"name": "wide", "expr": "processors > 100"}]
}`
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		out, _, err := run(t, "validate", path)
		if !errors.Is(err, manifest.ErrChecksFailed) {
			t.Fatalf("expected ErrChecksFailed, got %v", err)
		}
		if !strings.Contains(out, "OCN    adcirc  4") {
			t.Errorf("petlist should still be printed:\n%s", out)
		}
	})
}

func TestModels(t *testing.T) {
	out, _, err := run(t, "models", "--type", "wave")
	if err != nil {
		t.Fatalf("models failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var ids []string
	for _, line := range lines[1:] {
		ids = append(ids, strings.Fields(line)[0])
	}
	if diff := cmp.Diff([]string{"swan", "ww3", "ww3data"}, ids); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := run(t, "models", "--type", "LND"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if out != "nemsgen "+Version+"\n" {
		t.Errorf("version = %q", out)
	}
}

func TestPersistentFlags(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "nemsgen.env")
	metricsFile := filepath.Join(dir, "nemsgen.prom")
	if err := os.WriteFile(envFile, []byte("NEMSGEN_OUTPUT_DIR="+dir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NEMSGEN_OUTPUT_DIR", "")
	os.Unsetenv("NEMSGEN_OUTPUT_DIR")

	_, stderr, err := run(t, "write", shinnecock,
		"--env-file", envFile,
		"--log-level", "debug",
		"--log-format", "json",
		"--metrics-file", metricsFile)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "model_configure")); err != nil {
		t.Errorf("env file output directory was not used: %v", err)
	}
	if !strings.Contains(stderr, `"msg":"built modeling system"`) {
		t.Errorf("expected json debug logs, got:\n%s", stderr)
	}
	prom, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(prom), "nemsgen_") {
		t.Errorf("metrics file has no nemsgen metrics:\n%s", prom)
	}
}
