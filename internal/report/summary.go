package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gcmc-batch/internal/domain"
)

// Summary is the tabular form of a set of engine or analysis outputs: one
// record per input, keyed by name.
type Summary struct {
	Headers []string
	Records []domain.ResultRecord
}

// Column names of a RASPA2 report summary that do not depend on components.
const (
	ColumnHeliumVoidFraction   = "He_void_fraction"
	ColumnSurfaceAreaError     = "surface_area_error"
	ColumnFrameworkDensity     = "framework_density(kg/m^3)"
	ColumnTotalHeat            = "total_heat_of_adsorption(kJ/mol)"
	ColumnInfiniteDilutionHeat = "heat_of_adsorption_infinite_dilution(kJ/mol)"
	componentHeatColumnSuffix  = "_heat_of_adsorption(kJ/mol)"
	surfaceAreaColumnPrefix    = "surface_area("
)

// SurfaceAreaColumn names the surface area column for unit.
func SurfaceAreaColumn(unit SurfaceUnit) string {
	return surfaceAreaColumnPrefix + string(unit) + ")"
}

// ComponentHeatColumn names the fluctuation heat column of one component.
func ComponentHeatColumn(component string) string {
	return component + componentHeatColumnSuffix
}

// SummarizeReports parses finished RASPA2 reports into one row each, with
// every loading unit, the helium void fraction, the surface area in unit,
// the framework density and both heats of adsorption. Reports that cannot be
// read, are not RASPA2 output, are unfinished or fail extraction become
// error rows keyed by file name.
func SummarizeReports(paths []string, unit SurfaceUnit) (*Summary, error) {
	if _, known := surfaceAnchors[unit]; !known {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidUnit, unit)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no reports to summarize", domain.ErrConfiguration)
	}

	parsed := make(map[string]map[string]string, len(paths))
	var components []string
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		doc, err := raspa2Document(string(data))
		if err != nil {
			continue
		}
		values, err := summarizeDocument(doc, unit)
		if err != nil {
			continue
		}
		parsed[p] = values
		for _, c := range doc.Components() {
			if !contains(components, c) {
				components = append(components, c)
			}
		}
	}

	headers := []string{"name", "finished", "pressure", "temperature",
		ColumnHeliumVoidFraction, SurfaceAreaColumn(unit), ColumnSurfaceAreaError, ColumnFrameworkDensity}
	for _, c := range components {
		for _, kind := range []string{"absolute", "excess"} {
			for _, u := range LoadingUnits {
				headers = append(headers, c+"_"+kind+"_"+string(u))
			}
		}
		headers = append(headers, ComponentHeatColumn(c))
	}
	headers = append(headers, ColumnTotalHeat, ColumnInfiniteDilutionHeat, "warning")

	summary := &Summary{Headers: headers}
	for _, p := range paths {
		key := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		values, ok := parsed[p]
		if !ok {
			summary.Records = append(summary.Records, domain.FailedRecord(key))
			continue
		}
		summary.Records = append(summary.Records, domain.ResultRecord{Key: key, Values: values})
	}
	return summary, nil
}

func summarizeDocument(doc *Document, unit SurfaceUnit) (map[string]string, error) {
	values := baseValues(doc)
	if p, ok := doc.Pressure(); ok {
		values["pressure"] = p
	}
	temp, err := doc.Temperature()
	if err != nil {
		return nil, err
	}
	values["temperature"] = formatFloat(temp)
	if weights := doc.HeliumVoidFraction(); len(weights) > 0 {
		values[ColumnHeliumVoidFraction] = weights[0]
	}
	area, areaErr, ok, err := doc.SurfaceArea(unit)
	if err != nil {
		return nil, err
	}
	if ok {
		values[SurfaceAreaColumn(unit)] = area
		values[ColumnSurfaceAreaError] = areaErr
	}
	if density, ok := doc.FrameworkDensity(); ok {
		values[ColumnFrameworkDensity] = density
	}

	for _, u := range LoadingUnits {
		abs, err := doc.AbsoluteLoading(u)
		if err != nil {
			return nil, err
		}
		exc, err := doc.ExcessLoading(u)
		if err != nil {
			return nil, err
		}
		for c, v := range abs {
			values[c+"_absolute_"+string(u)] = v
		}
		for c, v := range exc {
			values[c+"_excess_"+string(u)] = v
		}
	}

	heats, err := doc.FluctuationHeat()
	if err != nil {
		return nil, err
	}
	for c, v := range heats {
		if c == TotalEnthalpyKey {
			values[ColumnTotalHeat] = v
			continue
		}
		values[ComponentHeatColumn(c)] = v
	}
	dilution, ok, err := doc.InfiniteDilutionHeat()
	if err != nil {
		return nil, err
	}
	if ok {
		values[ColumnInfiniteDilutionHeat] = formatFloat(dilution)
	}
	return values, nil
}
