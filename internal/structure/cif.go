// internal/structure/cif.go
package structure

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gcmc-batch/internal/domain"
)

// Cell holds the lattice parameters of a crystal structure. Lengths are in
// Angstrom, angles in degrees.
type Cell struct {
	A, B, C            float64
	Alpha, Beta, Gamma float64
}

var cellKeys = []string{
	"_cell_length_a",
	"_cell_length_b",
	"_cell_length_c",
	"_cell_angle_alpha",
	"_cell_angle_beta",
	"_cell_angle_gamma",
}

// ReadCell parses the six cell parameters of a CIF file. Uncertainties in
// parentheses, as in "25.832(3)", are dropped.
func ReadCell(path string) (Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return Cell{}, fmt.Errorf("failed to open cif: %w", err)
	}
	defer f.Close()

	values := make(map[string]float64, len(cellKeys))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := fields[0]
		if !isCellKey(key) {
			continue
		}
		raw := strings.SplitN(fields[len(fields)-1], "(", 2)[0]
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Cell{}, fmt.Errorf("%w: %s: bad %s %q", domain.ErrConfiguration, path, key, raw)
		}
		values[key] = v
	}
	if err := scanner.Err(); err != nil {
		return Cell{}, fmt.Errorf("failed to read cif: %w", err)
	}
	for _, k := range cellKeys {
		if _, ok := values[k]; !ok {
			return Cell{}, fmt.Errorf("%w: %s: missing %s", domain.ErrConfiguration, path, k)
		}
	}
	return Cell{
		A: values["_cell_length_a"], B: values["_cell_length_b"], C: values["_cell_length_c"],
		Alpha: values["_cell_angle_alpha"], Beta: values["_cell_angle_beta"], Gamma: values["_cell_angle_gamma"],
	}, nil
}

func isCellKey(k string) bool {
	for _, c := range cellKeys {
		if k == c {
			return true
		}
	}
	return false
}

// Volume returns the cell volume in cubic Angstrom.
func (c Cell) Volume() float64 {
	ca, cb, cg := cosDeg(c.Alpha), cosDeg(c.Beta), cosDeg(c.Gamma)
	return c.A * c.B * c.C * math.Sqrt(1+2*ca*cb*cg-ca*ca-cb*cb-cg*cg)
}

// Heights returns the perpendicular widths of the cell along a, b and c.
func (c Cell) Heights() [3]float64 {
	v := c.Volume()
	return [3]float64{
		v / (c.B * c.C * sinDeg(c.Alpha)),
		v / (c.A * c.C * sinDeg(c.Beta)),
		v / (c.A * c.B * sinDeg(c.Gamma)),
	}
}

// Replication returns how many cells are needed along each axis so that every
// perpendicular width of the simulation box is at least twice cutoff.
func (c Cell) Replication(cutoff float64) [3]int {
	var n [3]int
	for i, h := range c.Heights() {
		n[i] = int(math.Ceil(2 * cutoff / h))
	}
	return n
}

// UnitCells formats Replication the way simulation inputs expect it: "a b c".
func (c Cell) UnitCells(cutoff float64) string {
	n := c.Replication(cutoff)
	return fmt.Sprintf("%d %d %d", n[0], n[1], n[2])
}

func cosDeg(d float64) float64 { return math.Cos(d * math.Pi / 180) }
func sinDeg(d float64) float64 { return math.Sin(d * math.Pi / 180) }

// FrameworkLabels returns the distinct pseudo-atom labels of a CIF's
// _atom_site loop, with digits stripped ("Zn1" and "Zn2" both become "Zn").
func FrameworkLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cif: %w", err)
	}
	defer f.Close()

	var (
		labels  []string
		seen    = make(map[string]bool)
		columns int
		inRows  bool
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "_atom_"):
			if inRows {
				// a second _atom_ loop; its rows are not site rows
				return labels, nil
			}
			columns++
			continue
		case columns == 0:
			continue
		case line == "" || line == "loop_" || strings.HasPrefix(line, "_") || strings.HasPrefix(line, "#"):
			if inRows {
				return labels, nil
			}
			continue
		}
		inRows = true
		fields := strings.Fields(line)
		if len(fields) != columns {
			return nil, fmt.Errorf("%w: %s: atom row has %d fields, loop declares %d", domain.ErrConfiguration, path, len(fields), columns)
		}
		label := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return -1
			}
			return r
		}, fields[0])
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cif: %w", err)
	}
	return labels, nil
}
