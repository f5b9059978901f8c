package report

import (
	"fmt"

	"gcmc-batch/internal/domain"
)

// Unit is a loading unit printed by RASPA2.
type Unit string

const (
	UnitMoleculesPerCell Unit = "mol/uc"
	UnitCm3PerGram       Unit = "cm^3/g"
	UnitMolPerKg         Unit = "mol/kg"
	UnitMgPerGram        Unit = "mg/g"
	UnitCm3PerCm3        Unit = "cm^3/cm^3"
)

// LoadingUnits lists the recognized loading units in column order.
var LoadingUnits = []Unit{UnitMoleculesPerCell, UnitCm3PerGram, UnitMolPerKg, UnitMgPerGram, UnitCm3PerCm3}

// loadingAnchors maps a unit to the bracketed token RASPA2 prints after
// "Average loading absolute" and "Average loading excess".
var loadingAnchors = map[Unit]string{
	UnitMoleculesPerCell: "[molecules/unit cell]",
	UnitCm3PerGram:       "[cm^3 (STP)/gr framework]",
	UnitMolPerKg:         "[mol/kg framework]",
	UnitMgPerGram:        "[milligram/gram framework]",
	UnitCm3PerCm3:        "[cm^3 (STP)/cm^3 framework]",
}

// ParseUnit validates a unit name.
func ParseUnit(s string) (Unit, error) {
	u := Unit(s)
	if _, ok := loadingAnchors[u]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidUnit, s)
	}
	return u, nil
}

// SurfaceUnit is a unit of the accessible surface area block.
type SurfaceUnit string

const (
	SurfaceA2        SurfaceUnit = "A^2"
	SurfaceM2PerGram SurfaceUnit = "m^2/g"
	SurfaceM2PerCm3  SurfaceUnit = "m^2/cm^3"
)

var surfaceAnchors = map[SurfaceUnit]string{
	SurfaceA2:        "[A^2]",
	SurfaceM2PerGram: "[m^2/g]",
	SurfaceM2PerCm3:  "[m^2/cm^3]",
}

// ParseSurfaceUnit validates a surface area unit name.
func ParseSurfaceUnit(s string) (SurfaceUnit, error) {
	u := SurfaceUnit(s)
	if _, ok := surfaceAnchors[u]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidUnit, s)
	}
	return u, nil
}
