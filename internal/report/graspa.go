package report

import (
	"fmt"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
)

// BlockAverage names one "BLOCK AVERAGES (...)" section of a gRASPA data file.
type BlockAverage string

const (
	BlockHeatOfAdsorption BlockAverage = "HEAT OF ADSORPTION: kJ/mol"
	BlockLoadingMolecules BlockAverage = "LOADING: # MOLECULES"
	BlockLoadingMgPerG    BlockAverage = "LOADING: mg/g"
	BlockLoadingMolPerKg  BlockAverage = "LOADING: mol/kg"
	BlockLoadingGPerL     BlockAverage = "LOADING: g/L"
)

// blockOffsets is the distance, in lines, from a block heading to the line
// carrying the overall average.
var blockOffsets = map[BlockAverage]int{
	BlockHeatOfAdsorption: 7,
	BlockLoadingMolecules: 16,
	BlockLoadingMgPerG:    19,
	BlockLoadingMolPerKg:  19,
	BlockLoadingGPerL:     8,
}

const (
	graspaEndMarker = "END OF PROGRAM"
	henryAnchor     = "Averaged Henry Coefficient [mol/kg/Pa]"
)

// GRASPADocument is a read-only view over a gRASPA data file or capture.
type GRASPADocument struct {
	lines []string
}

// NewGRASPADocument splits text into lines for offset-based lookups.
func NewGRASPADocument(text string) *GRASPADocument {
	return &GRASPADocument{lines: strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")}
}

// BlockAverage returns the overall average of the named block. ok is false
// when the block is absent or truncated.
func (g *GRASPADocument) BlockAverage(b BlockAverage) (value string, ok bool) {
	offset, known := blockOffsets[b]
	if !known {
		return "", false
	}
	heading := "BLOCK AVERAGES (" + string(b) + ")"
	for i, line := range g.lines {
		if !strings.Contains(line, heading) {
			continue
		}
		if i+offset >= len(g.lines) {
			return "", false
		}
		head := strings.SplitN(g.lines[i+offset], ",", 2)[0]
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return "", false
		}
		return fields[len(fields)-1], true
	}
	return "", false
}

// HenryCoefficient returns the averaged Henry coefficient and its error bar,
// both in mol/kg/Pa and formatted with eight fractional digits in exponent form.
func (g *GRASPADocument) HenryCoefficient() (avg, errBar string, ok bool) {
	for _, line := range g.lines {
		if !strings.Contains(line, henryAnchor) {
			continue
		}
		_, rest, found := strings.Cut(line[strings.Index(line, henryAnchor)+len(henryAnchor):], ":")
		if !found {
			return "", "", false
		}
		parts := strings.SplitN(rest, "+/-", 2)
		avg = scientific(strings.TrimSpace(parts[0]))
		if len(parts) > 1 {
			errBar = scientific(strings.TrimSpace(parts[1]))
		}
		return avg, errBar, true
	}
	return "", "", false
}

// scientific reformats a number as %.8e, leaving non-numeric text unchanged.
func scientific(v string) string {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return fmt.Sprintf("%.8e", f)
}

// graspaIsotherm extracts heat of adsorption and four loadings for the single
// adsorbate of a gRASPA isotherm point.
type graspaIsotherm struct{}

func (graspaIsotherm) Headers(components []string) []string {
	headers := []string{"pressure", "finished"}
	for _, c := range components {
		headers = append(headers,
			c+"_Heat_of_adsorption_kJ/mol",
			c+"_loading_molecules",
			c+"_loading_mg/g",
			c+"_loading_mol/kg",
			c+"_loading_g/L",
		)
	}
	return append(headers, "warning")
}

func (graspaIsotherm) Extract(text string, components []string) (map[string]string, error) {
	if len(components) != 1 {
		return nil, fmt.Errorf("%w: gRASPA isotherm supports one adsorbate, got %d", domain.ErrExtraction, len(components))
	}
	if Detect(text) != ShapeGRASPA {
		return nil, fmt.Errorf("%w: not a gRASPA data file", domain.ErrExtraction)
	}
	doc := NewGRASPADocument(text)
	c := components[0]
	values := map[string]string{"finished": "True", "warning": ""}
	columns := []struct {
		header string
		block  BlockAverage
	}{
		{c + "_Heat_of_adsorption_kJ/mol", BlockHeatOfAdsorption},
		{c + "_loading_molecules", BlockLoadingMolecules},
		{c + "_loading_mg/g", BlockLoadingMgPerG},
		{c + "_loading_mol/kg", BlockLoadingMolPerKg},
		{c + "_loading_g/L", BlockLoadingGPerL},
	}
	for _, col := range columns {
		if v, ok := doc.BlockAverage(col.block); ok {
			values[col.header] = v
		}
	}
	return values, nil
}

// graspaHenry extracts the Widom Henry coefficient of a gRASPA run.
type graspaHenry struct{}

func (graspaHenry) Headers([]string) []string {
	return []string{"name", "finished", "Average_Henry_Coefficient", "Henry_Coefficient_Error", "warning"}
}

func (graspaHenry) Extract(text string, _ []string) (map[string]string, error) {
	if Detect(text) != ShapeGRASPA {
		return nil, fmt.Errorf("%w: not a gRASPA data file", domain.ErrExtraction)
	}
	values := map[string]string{"finished": "True", "warning": ""}
	if avg, errBar, ok := NewGRASPADocument(text).HenryCoefficient(); ok {
		values["Average_Henry_Coefficient"] = avg
		values["Henry_Coefficient_Error"] = errBar
	}
	return values, nil
}
