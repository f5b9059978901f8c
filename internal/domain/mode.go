package domain

import "fmt"

// Mode selects the engine, the report shape and the output layout of a batch.
type Mode string

const (
	ModeIsotherm       Mode = "isotherm"        // RASPA2 GCMC isotherm, one or more components
	ModeHenry          Mode = "henry"           // RASPA2 Widom insertion: Henry coefficient and heat of adsorption
	ModeGRASPAIsotherm Mode = "graspa-isotherm" // gRASPA single component GCMC
	ModeGRASPAHenry    Mode = "graspa-henry"    // gRASPA Widom insertion
)

// Grouping defines how result rows are spread over tabular files.
type Grouping string

const (
	GroupPerStructure Grouping = "per-structure"
	GroupPerBatch     Grouping = "per-batch"
)

// Modes lists every supported mode.
var Modes = []Mode{ModeIsotherm, ModeHenry, ModeGRASPAIsotherm, ModeGRASPAHenry}

// ParseMode converts a configured mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Grouping returns the file layout used by the mode.
func (m Mode) Grouping() Grouping {
	switch m {
	case ModeIsotherm, ModeGRASPAIsotherm:
		return GroupPerStructure
	default:
		return GroupPerBatch
	}
}

// IsGRASPA reports whether the mode drives the gRASPA engine.
func (m Mode) IsGRASPA() bool {
	return m == ModeGRASPAIsotherm || m == ModeGRASPAHenry
}
