package report

import (
	"fmt"
	"strings"

	"gcmc-batch/internal/domain"
)

// Extractor turns the final text of one report into row values keyed by
// header name. Implementations are pure: the same text always yields the
// same values.
type Extractor interface {
	// Headers returns the full column set, key column first and "warning" last.
	Headers(components []string) []string
	// Extract returns the values of every metric found in text. Metrics
	// absent from the report are left out of the map.
	Extract(text string, components []string) (map[string]string, error)
}

// ExtractorFor returns the extractor of a simulation mode.
func ExtractorFor(mode domain.Mode) (Extractor, error) {
	switch mode {
	case domain.ModeIsotherm:
		return isotherm{units: LoadingUnits}, nil
	case domain.ModeHenry:
		return henry{}, nil
	case domain.ModeGRASPAIsotherm:
		return graspaIsotherm{}, nil
	case domain.ModeGRASPAHenry:
		return graspaHenry{}, nil
	}
	return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrConfiguration, mode)
}

// NewIsothermExtractor builds a RASPA2 isotherm extractor over the given units.
func NewIsothermExtractor(units ...string) (Extractor, error) {
	parsed := make([]Unit, 0, len(units))
	for _, u := range units {
		unit, err := ParseUnit(u)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, unit)
	}
	return isotherm{units: parsed}, nil
}

// isotherm extracts absolute and excess loadings of a RASPA2 GCMC run.
type isotherm struct {
	units []Unit
}

func (e isotherm) Headers(components []string) []string {
	headers := []string{"pressure", "finished"}
	for _, kind := range []string{"absolute", "excess"} {
		for _, c := range components {
			for _, u := range e.units {
				headers = append(headers, c+"_"+kind+"_"+string(u))
			}
		}
	}
	return append(headers, "warning")
}

func (e isotherm) Extract(text string, components []string) (map[string]string, error) {
	doc, err := raspa2Document(text)
	if err != nil {
		return nil, err
	}
	values := baseValues(doc)
	for _, u := range e.units {
		abs, err := doc.AbsoluteLoading(u)
		if err != nil {
			return nil, err
		}
		exc, err := doc.ExcessLoading(u)
		if err != nil {
			return nil, err
		}
		for _, c := range components {
			if v, ok := abs[c]; ok {
				values[c+"_absolute_"+string(u)] = v
			}
			if v, ok := exc[c]; ok {
				values[c+"_excess_"+string(u)] = v
			}
		}
	}
	return values, nil
}

// henry extracts Henry coefficients and Widom heats of adsorption.
type henry struct{}

func (henry) Headers(components []string) []string {
	headers := []string{"name", "finished"}
	for _, c := range components {
		headers = append(headers, c+"_Henry_coefficient_mol/kg/Pa", c+"_Heat_of_adsorption_mol/kJ")
	}
	return append(headers, "warning")
}

func (henry) Extract(text string, components []string) (map[string]string, error) {
	doc, err := raspa2Document(text)
	if err != nil {
		return nil, err
	}
	values := baseValues(doc)
	coefficients, err := doc.HenryCoefficient()
	if err != nil {
		return nil, err
	}
	heats, err := doc.WidomHeat()
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		if v, ok := coefficients[c]; ok {
			values[c+"_Henry_coefficient_mol/kg/Pa"] = v
		}
		if v, ok := heats[c]; ok {
			values[c+"_Heat_of_adsorption_mol/kJ"] = v
		}
	}
	return values, nil
}

func raspa2Document(text string) (*Document, error) {
	if shape := Detect(text); shape != ShapeRASPA2 {
		return nil, fmt.Errorf("%w: expected a RASPA2 report, got %s", domain.ErrExtraction, shape)
	}
	doc := NewDocument(text)
	if !doc.Finished() {
		return nil, fmt.Errorf("%w: report is not finalized", domain.ErrExtraction)
	}
	return doc, nil
}

func baseValues(doc *Document) map[string]string {
	return map[string]string{
		"finished": "True",
		"warning":  strings.Join(doc.Warnings(), "; "),
	}
}
