package coupling

import (
	"fmt"
	"strings"

	"github.com/flexinfer/nemsgen/pkg/types"
)

// Preset describes a known model implementation.
type Preset struct {
	Name        string
	Type        types.EntryType
	Description string
	URL         string
	// DefaultProcessors is used when Build is given 0. Zero means the caller
	// must always choose.
	DefaultProcessors int
	// Forcing presets supply precomputed input rather than running a solver.
	Forcing bool
}

var presets = []Preset{
	{Name: "atmesh", Type: types.Atmospheric, Description: "Atmospheric Mesh (ATMesh) forcing", DefaultProcessors: 1, Forcing: true},
	{Name: "hwrf", Type: types.Atmospheric, Description: "Hurricane Weather Research and Forecasting model", URL: "https://en.wikipedia.org/wiki/Hurricane_Weather_Research_and_Forecasting_Model"},
	{Name: "adcirc", Type: types.Ocean, Description: "Advanced Circulation model", URL: "https://adcirc.org"},
	{Name: "schism", Type: types.Ocean, Description: "Semi-implicit Cross-scale Hydroscience Integrated System Model", URL: "http://ccrm.vims.edu/schismweb/"},
	{Name: "ww3", Type: types.Wave, Description: "WaveWatch III model", URL: "https://polar.ncep.noaa.gov/waves/wavewatch/"},
	{Name: "ww3data", Type: types.Wave, Description: "WaveWatch III output forcing", DefaultProcessors: 1, Forcing: true},
	{Name: "swan", Type: types.Wave, Description: "Simulating WAves Nearshore model", URL: "http://swanmodel.sourceforge.net/"},
	{Name: "nwm", Type: types.Hydrological, Description: "National Water Model", URL: "https://water.noaa.gov/about/nwm"},
	{Name: "icemesh", Type: types.Ice, Description: "Ice concentration forcing", DefaultProcessors: 1, Forcing: true},
}

// Presets returns the known model implementations.
func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

// LookupPreset finds a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}

// Build creates an entry for the preset. A processor count of 0 selects the
// preset's default.
func (p Preset) Build(processors int, opts ...EntryOption) (*ModelEntry, error) {
	if processors == 0 {
		processors = p.DefaultProcessors
	}
	if processors < 1 {
		return nil, fmt.Errorf("%w: %s requires an explicit processor count", ErrInvalidProcessors, p.Name)
	}
	return NewModelEntry(p.Type, p.Name, processors, opts...)
}
