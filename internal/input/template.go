// internal/input/template.go
package input

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
)

// FileName is the name of the rendered simulation input in every working directory.
const FileName = "simulation.input"

var moleculeNameRe = regexp.MustCompile(`MoleculeName\s+(.+)`)

// Template is a simulation input with substitution points.
type Template struct {
	text string
}

// Load reads a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read input template: %v", domain.ErrConfiguration, err)
	}
	return Parse(string(data)), nil
}

// Parse wraps template text.
func Parse(text string) *Template {
	return &Template{text: text}
}

// Text returns the raw template.
func (t *Template) Text() string { return t.text }

// Values are the substitutions of one job.
type Values struct {
	CIFName     string
	UnitCells   string
	Cutoff      float64
	Temperature string
	Pressure    string
}

// Render substitutes every placeholder. Both {temperature} and {Temperature}
// are recognized, and likewise for pressure.
func (t *Template) Render(v Values) string {
	cutoff := strconv.FormatFloat(v.Cutoff, 'f', -1, 64)
	if v.Cutoff == float64(int64(v.Cutoff)) {
		cutoff = strconv.FormatFloat(v.Cutoff, 'f', 1, 64)
	}
	return strings.NewReplacer(
		"{cif_name}", v.CIFName,
		"{unitcell}", v.UnitCells,
		"{cutoff}", cutoff,
		"{temperature}", v.Temperature,
		"{Temperature}", v.Temperature,
		"{pressure}", v.Pressure,
		"{Pressure}", v.Pressure,
	).Replace(t.text)
}

// Components returns the adsorbates named by MoleculeName lines, in order.
func (t *Template) Components() []string {
	var out []string
	for _, m := range moleculeNameRe.FindAllStringSubmatch(t.text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// Frameworks returns the names on the last FrameworkName line of a rendered input.
func Frameworks(rendered string) []string {
	var out []string
	for _, line := range strings.Split(rendered, "\n") {
		if !strings.Contains(line, "FrameworkName") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 1 {
			out = append([]string(nil), fields[1:]...)
		}
	}
	return out
}

// Adsorbates returns the molecule of every "Component N MoleculeName X" line.
func Adsorbates(rendered string) []string {
	var out []string
	for _, line := range strings.Split(rendered, "\n") {
		if !strings.Contains(line, "Component") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 3 {
			out = append(out, fields[3])
		}
	}
	return out
}
