// internal/domain/condition.go
package domain

import (
	"fmt"
	"strings"
)

// SimulationCondition is one (structure, condition) pair of a batch.
// It is created once by the batch driver and never mutated.
type SimulationCondition struct {
	Structure   string  `json:"structure"`   // CIF file name without extension
	CIFPath     string  `json:"cif_path"`    // Absolute path of the source CIF file
	Pressure    string  `json:"pressure"`    // Pressure as configured, in Pa
	Temperature string  `json:"temperature"` // Temperature as configured, in K
	CutoffVDW   float64 `json:"cutoff_vdw"`  // Van der Waals cutoff in Angstrom
}

// ID returns a stable identifier built from the condition's field values.
func (c SimulationCondition) ID() string {
	if c.Pressure == "" {
		return c.Structure
	}
	return fmt.Sprintf("%s__%s", c.Structure, c.Pressure)
}

// StructureName strips the .cif extension from a CIF file name.
func StructureName(fileName string) string {
	if strings.HasSuffix(strings.ToLower(fileName), ".cif") {
		return fileName[:len(fileName)-4]
	}
	return fileName
}
