package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
)

// BoltzmannKJ is the Boltzmann constant in kJ/(mol K), used to turn energies
// reported in Kelvin into kJ/mol.
const BoltzmannKJ = 0.008314464919

// number matches plain and scientific notation.
const number = `[-+]?\d+(?:\.\d*)?(?:[eE][-+]?\d+)?`

var (
	declaredComponentRe = regexp.MustCompile(`Component \d+ \[(.*)\] \(Adsorbate molecule\)`)
	componentHeadingRe  = regexp.MustCompile(`(?m)^[ \t]*Component \d+ \[([^\]\n]+)\][ \t]*$`)
	finishedRe          = regexp.MustCompile(`Simulation finished`)
	noWarningsRe        = regexp.MustCompile(`(?:^|\s)0 warnings`)
	warningRe           = regexp.MustCompile(`WARNING: (.*)\n`)
	pressureRe          = regexp.MustCompile(`Pressure:\s+(` + number + `)\s+\[Pa\]`)
	temperatureRe       = regexp.MustCompile(`External temperature:\s+(` + number + `)\s+\[K\]`)
	henryRe             = regexp.MustCompile(`\[([^\]\n]+)\]\s+Average Henry coefficient:\s+(` + number + `)\s+`)
	widomEnergyRe       = regexp.MustCompile(`\[([^\]\n]+)\]\s+Average  <U_gh>_1-<U_h>_0:\s+(` + number + `)\s+`)
	enthalpyComponentRe = regexp.MustCompile(`Enthalpy of adsorption component \d+ \[(.*)\]\n\s*-*\n.*\n.*\n.*\n.*\n.*\n\s*-*\n.*\n\s+(-?\d+\.?\d*)\s+`)
	enthalpyTotalRe     = regexp.MustCompile(`Total enthalpy of adsorption\n.*\n.*\n.*\n.*\n.*\n.*\n.*\n.*\n\s+(-?\d+\.?\d*)\s+`)
	totalEnergyRe       = regexp.MustCompile(`Total energy:\n.*\n.*\n.*\n.*\n.*\n.*\n.*\n\s+Average\s+(-?\d+\.?\d*)\s+`)
	rosenbluthRe        = regexp.MustCompile(`Average Widom Rosenbluth-weight:\s+(` + number + `)\s+`)
	frameworkDensityRe  = regexp.MustCompile(`Framework Density:\s+(` + number + `)\s+\[kg/m\^3\]`)
)

// TotalEnthalpyKey is the key used when a report only carries the
// mixture-wide enthalpy of adsorption.
const TotalEnthalpyKey = "Total enthalpy of adsorption"

// Document is a read-only view over one RASPA2 output report.
type Document struct {
	text       string
	components []string
}

// NewDocument wraps the text of a RASPA2 report.
func NewDocument(text string) *Document {
	var components []string
	for _, m := range declaredComponentRe.FindAllStringSubmatch(text, -1) {
		components = append(components, m[1])
	}
	return &Document{text: text, components: components}
}

// Components returns the adsorbates declared by the report, in declaration order.
func (d *Document) Components() []string {
	return append([]string(nil), d.components...)
}

// Finished reports whether the engine wrote its completion line.
func (d *Document) Finished() bool {
	return finishedRe.MatchString(d.text)
}

// Warnings returns the distinct warning lines in order of first appearance.
func (d *Document) Warnings() []string {
	if noWarningsRe.MatchString(d.text) {
		return nil
	}
	seen := make(map[string]bool)
	var warnings []string
	for _, m := range warningRe.FindAllStringSubmatch(d.text, -1) {
		w := strings.TrimSpace(m[1])
		if seen[w] {
			continue
		}
		seen[w] = true
		warnings = append(warnings, w)
	}
	return warnings
}

// Pressure returns the first reported pressure, in Pa.
func (d *Document) Pressure() (string, bool) {
	return firstGroup(pressureRe, d.text)
}

// Temperature returns the external temperature, in K.
func (d *Document) Temperature() (float64, error) {
	raw, ok := firstGroup(temperatureRe, d.text)
	if !ok {
		return 0, fmt.Errorf("%w: external temperature not reported", domain.ErrExtraction)
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad temperature %q: %v", domain.ErrExtraction, raw, err)
	}
	return t, nil
}

// AbsoluteLoading returns the absolute loading of every component that reports one.
func (d *Document) AbsoluteLoading(unit Unit) (map[string]string, error) {
	return d.loading("absolute", unit)
}

// ExcessLoading returns the excess loading of every component that reports one.
func (d *Document) ExcessLoading(unit Unit) (map[string]string, error) {
	return d.loading("excess", unit)
}

func (d *Document) loading(kind string, unit Unit) (map[string]string, error) {
	anchor, ok := loadingAnchors[unit]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	re := regexp.MustCompile(`Average loading ` + kind + ` ` + regexp.QuoteMeta(anchor) + `\s+(` + number + `)\s+`)
	return d.bindBlocks(re)
}

// HenryCoefficient returns the Henry coefficient of every component, in mol/kg/Pa.
func (d *Document) HenryCoefficient() (map[string]string, error) {
	return d.bindNamed(henryRe, identity)
}

// WidomHeat returns the heat of adsorption derived from the Widom insertion
// energy <U_gh>_1-<U_h>_0, in kJ/mol.
func (d *Document) WidomHeat() (map[string]string, error) {
	if !widomEnergyRe.MatchString(d.text) {
		return map[string]string{}, nil
	}
	temp, err := d.Temperature()
	if err != nil {
		return nil, err
	}
	return d.bindNamed(widomEnergyRe, func(v string) (string, error) {
		u, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", err
		}
		return formatFloat(-(u - temp) * BoltzmannKJ), nil
	})
}

// FluctuationHeat returns the heat of adsorption computed by the engine with
// the fluctuation formula, sign flipped to a positive heat, in kJ/mol.
// Reports without per-component blocks yield a single TotalEnthalpyKey entry.
func (d *Document) FluctuationHeat() (map[string]string, error) {
	result := make(map[string]string)
	matches := enthalpyComponentRe.FindAllStringSubmatch(d.text, -1)
	if len(matches) > 0 {
		for _, m := range matches {
			if err := d.bind(result, m[1], m[2], negate); err != nil {
				return nil, err
			}
		}
		return result, nil
	}
	if raw, ok := firstGroup(enthalpyTotalRe, d.text); ok {
		v, err := negate(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
		}
		result[TotalEnthalpyKey] = v
	}
	return result, nil
}

// InfiniteDilutionHeat returns ([U_hg] - T) * kB for a single adsorbate at
// infinite dilution, in kJ/mol. ok is false when the energy block is absent.
func (d *Document) InfiniteDilutionHeat() (value float64, ok bool, err error) {
	raw, found := firstGroup(totalEnergyRe, d.text)
	if !found {
		return 0, false, nil
	}
	temp, err := d.Temperature()
	if err != nil {
		return 0, false, err
	}
	u, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: bad total energy %q", domain.ErrExtraction, raw)
	}
	return (u - temp) * BoltzmannKJ, true, nil
}

// HeliumVoidFraction returns every Widom Rosenbluth weight in the report.
func (d *Document) HeliumVoidFraction() []string {
	var out []string
	for _, m := range rosenbluthRe.FindAllStringSubmatch(d.text, -1) {
		out = append(out, m[1])
	}
	return out
}

// SurfaceArea returns the average accessible surface area and its error bar.
func (d *Document) SurfaceArea(unit SurfaceUnit) (value, errBar string, ok bool, err error) {
	anchor, known := surfaceAnchors[unit]
	if !known {
		return "", "", false, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	prefix := `\s+`
	if unit == SurfaceA2 {
		prefix = `Average surface area:\s+`
	}
	re := regexp.MustCompile(prefix + `(` + number + `)\s+\+/-\s+(` + number + `)\s+` + regexp.QuoteMeta(anchor))
	m := re.FindStringSubmatch(d.text)
	if m == nil {
		return "", "", false, nil
	}
	return m[1], m[2], true, nil
}

// FrameworkDensity returns the framework density, in kg/m^3.
func (d *Document) FrameworkDensity() (string, bool) {
	return firstGroup(frameworkDensityRe, d.text)
}

// bindBlocks binds the first match of re inside each per-component block to
// that block's component. Reports without component blocks fall back to
// positional binding, which requires one value per declared component.
func (d *Document) bindBlocks(re *regexp.Regexp) (map[string]string, error) {
	result := make(map[string]string)
	blocks := componentBlocks(d.text)
	if len(blocks) == 0 {
		var values []string
		for _, m := range re.FindAllStringSubmatch(d.text, -1) {
			values = append(values, m[1])
		}
		if len(values) == 0 {
			return result, nil
		}
		if len(values) != len(d.components) {
			return nil, fmt.Errorf("%w: %d values for %d components", domain.ErrExtraction, len(values), len(d.components))
		}
		for i, c := range d.components {
			result[c] = values[i]
		}
		return result, nil
	}
	for _, b := range blocks {
		if _, done := result[b.component]; done {
			continue
		}
		m := re.FindStringSubmatch(b.text)
		if m == nil {
			continue
		}
		if err := d.bind(result, b.component, m[1], identity); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// bindNamed binds every "[name] ..." line matched by re.
func (d *Document) bindNamed(re *regexp.Regexp, transform func(string) (string, error)) (map[string]string, error) {
	result := make(map[string]string)
	for _, m := range re.FindAllStringSubmatch(d.text, -1) {
		if _, done := result[m[1]]; done {
			continue
		}
		if err := d.bind(result, m[1], m[2], transform); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *Document) bind(result map[string]string, component, raw string, transform func(string) (string, error)) error {
	if len(d.components) > 0 && !contains(d.components, component) {
		return fmt.Errorf("%w: value reported for undeclared component %q", domain.ErrExtraction, component)
	}
	v, err := transform(raw)
	if err != nil {
		return fmt.Errorf("%w: component %s: %v", domain.ErrExtraction, component, err)
	}
	result[component] = v
	return nil
}

type block struct {
	component string
	text      string
}

// componentBlocks splits the report at every "Component N [name]" heading.
// A block runs until the next heading.
func componentBlocks(text string) []block {
	idx := componentHeadingRe.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]block, 0, len(idx))
	for i, loc := range idx {
		end := len(text)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		blocks = append(blocks, block{
			component: text[loc[2]:loc[3]],
			text:      text[loc[1]:end],
		})
	}
	return blocks
}

func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func identity(v string) (string, error) { return v, nil }

func negate(v string) (string, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", err
	}
	return formatFloat(-f), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
