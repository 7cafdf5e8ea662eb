// Package configfile renders the text files read by the NEMS coupler.
package configfile

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/flexinfer/nemsgen/pkg/coupling"
)

// File names as expected by the coupler.
const (
	NEMSConfigurationName  = "nems.configure"
	MeshFileName           = "config.rc"
	ModelConfigurationName = "model_configure"
	AtmNamelistName        = "atm_namelist.rc"
)

// File is a rendered configuration file.
type File interface {
	// Name is the file name relative to the output directory.
	Name() string
	// Render returns the file body without a trailing newline.
	Render() string
}

// VersionHeader returns the comment line stamped on generated files.
func VersionHeader(name, version string) string {
	return fmt.Sprintf("# `%s` generated with nemsgen %s", name, version)
}

// Content returns the bytes written to disk for f: the body followed by a
// newline, optionally preceded by the version header.
func Content(f File, includeVersion bool, version string) []byte {
	out := f.Render() + "\n"
	if includeVersion {
		out = VersionHeader(f.Name(), version) + "\n" + out
	}
	return []byte(out)
}

// NEMSConfiguration renders nems.configure: the EARTH block, one block per
// model in chain order and the run sequence.
type NEMSConfiguration struct {
	Sequence *coupling.RunSequence
}

func (NEMSConfiguration) Name() string { return NEMSConfigurationName }

func (c NEMSConfiguration) Render() string {
	blocks := []string{section("EARTH", c.Sequence.Earth().String())}
	for _, m := range c.Sequence.Models() {
		blocks = append(blocks, section(m.Type().Code(), m.String()))
	}
	blocks = append(blocks, section("Run Sequence", c.Sequence.String()))
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}

func section(title, body string) string {
	return "# " + title + " #\n" + body + "\n"
}

// MeshFile renders config.rc, listing the input path of every forcing entry.
type MeshFile struct {
	Sequence *coupling.RunSequence
}

func (MeshFile) Name() string { return MeshFileName }

func (f MeshFile) Render() string {
	var lines []string
	for _, m := range f.Sequence.Models() {
		if !m.IsForcing() {
			continue
		}
		code := strings.ToLower(m.Type().Code())
		lines = append(lines,
			fmt.Sprintf("%s_dir: %s", code, filepath.Dir(m.Forcing())),
			fmt.Sprintf("%s_nam: %s", code, filepath.Base(m.Forcing())))
	}
	return strings.Join(lines, "\n")
}

// ModelConfiguration renders model_configure.
type ModelConfiguration struct {
	Sequence *coupling.RunSequence
	Start    time.Time
	Duration time.Duration
}

func (ModelConfiguration) Name() string { return ModelConfigurationName }

func (c ModelConfiguration) Render() string {
	field := func(key string, value any) string {
		return fmt.Sprintf("%-24s %v", key+":", value)
	}
	return strings.Join([]string{
		field("total_member", 1),
		field("print_esmf", ".true."),
		field("namelist", "atm_namelist"),
		field("PE_MEMBER01", c.Sequence.Processors()),
		field("start_year", c.Start.Year()),
		field("start_month", int(c.Start.Month())),
		field("start_day", c.Start.Day()),
		field("start_hour", c.Start.Hour()),
		field("start_minute", c.Start.Minute()),
		field("start_second", c.Start.Second()),
		field("nhours_fcst", ForecastHours(c.Duration)),
		field("RUN_CONTINUE", ".false."),
		field("ENS_SPS", ".false."),
	}, "\n")
}

// ForecastHours rounds d to whole hours, halves to even.
func ForecastHours(d time.Duration) int {
	return int(math.RoundToEven(d.Hours()))
}
