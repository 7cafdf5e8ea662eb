package configfile

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/flexinfer/nemsgen/pkg/coupling"
	"github.com/flexinfer/nemsgen/pkg/types"
)

func testSequence(t *testing.T) *coupling.RunSequence {
	t.Helper()
	atmesh, _ := coupling.LookupPreset("atmesh")
	ww3data, _ := coupling.LookupPreset("ww3data")
	adcirc, _ := coupling.LookupPreset("adcirc")

	atm, err := atmesh.Build(0, coupling.WithForcing("/data/forcing/wind_atm_fin_ch_time_vec.nc"))
	if err != nil {
		t.Fatal(err)
	}
	wav, err := ww3data.Build(0, coupling.WithForcing("/data/forcing/ww3.Constant.20151214_sxy_ike_date.nc"))
	if err != nil {
		t.Fatal(err)
	}
	ocn, err := adcirc.Build(11)
	if err != nil {
		t.Fatal(err)
	}

	seq, err := coupling.NewRunSequence(time.Hour,
		coupling.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		coupling.WithModels(atm, wav, ocn))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Connect(types.Atmospheric, types.Ocean, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Connect(types.Wave, types.Ocean, ""); err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestNEMSConfiguration(t *testing.T) {
	f := NEMSConfiguration{Sequence: testSequence(t)}
	if f.Name() != "nems.configure" {
		t.Errorf("Name() = %q", f.Name())
	}

	want := strings.Join([]string{
		"# EARTH #",
		"EARTH_component_list: ATM WAV OCN",
		"EARTH_attributes::",
		"  Verbosity = min",
		"::",
		"",
		"# ATM #",
		"ATM_model:                      atmesh",
		"ATM_petlist_bounds:             0 0",
		"ATM_attributes::",
		"  Verbosity = min",
		"::",
		"",
		"# WAV #",
		"WAV_model:                      ww3data",
		"WAV_petlist_bounds:             1 1",
		"WAV_attributes::",
		"  Verbosity = min",
		"::",
		"",
		"# OCN #",
		"OCN_model:                      adcirc",
		"OCN_petlist_bounds:             2 12",
		"OCN_attributes::",
		"  Verbosity = min",
		"::",
		"",
		"# Run Sequence #",
		"runSeq::",
		"  @3600",
		"    ATM",
		"    WAV",
		"    OCN",
		"    ATM -> OCN   :remapMethod=redist",
		"    WAV -> OCN   :remapMethod=redist",
		"  @",
		"::",
	}, "\n")
	if diff := cmp.Diff(want, f.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestMeshFile(t *testing.T) {
	f := MeshFile{Sequence: testSequence(t)}
	want := "atm_dir: /data/forcing\n" +
		"atm_nam: wind_atm_fin_ch_time_vec.nc\n" +
		"wav_dir: /data/forcing\n" +
		"wav_nam: ww3.Constant.20151214_sxy_ike_date.nc"
	if diff := cmp.Diff(want, f.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestModelConfiguration(t *testing.T) {
	f := ModelConfiguration{
		Sequence: testSequence(t),
		Start:    time.Date(2020, time.June, 1, 6, 30, 15, 0, time.UTC),
		Duration: 24*time.Hour + 20*time.Minute,
	}
	want := strings.Join([]string{
		"total_member:            1",
		"print_esmf:              .true.",
		"namelist:                atm_namelist",
		"PE_MEMBER01:             13",
		"start_year:              2020",
		"start_month:             6",
		"start_day:               1",
		"start_hour:              6",
		"start_minute:            30",
		"start_second:            15",
		"nhours_fcst:             24",
		"RUN_CONTINUE:            .false.",
		"ENS_SPS:                 .false.",
	}, "\n")
	if diff := cmp.Diff(want, f.Render()); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestForecastHours(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{24 * time.Hour, 24},
		{90 * time.Minute, 2},
		{150 * time.Minute, 2},
		{29 * time.Minute, 0},
	}
	for _, tt := range tests {
		if got := ForecastHours(tt.d); got != tt.want {
			t.Errorf("ForecastHours(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestContent(t *testing.T) {
	f := MeshFile{Sequence: testSequence(t)}

	plain := string(Content(f, false, "v1.2.3"))
	if !strings.HasSuffix(plain, ".nc\n") || strings.HasPrefix(plain, "#") {
		t.Errorf("unexpected content %q", plain)
	}

	stamped := string(Content(f, true, "v1.2.3"))
	header := "# `config.rc` generated with nemsgen v1.2.3\n"
	if !strings.HasPrefix(stamped, header) {
		t.Errorf("expected version header, got %q", stamped)
	}
}
