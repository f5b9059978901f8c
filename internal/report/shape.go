package report

import "strings"

// Shape is the layout family of a report.
type Shape string

const (
	ShapeUnknown Shape = "unknown"
	ShapeRASPA2  Shape = "raspa2"
	ShapeGRASPA  Shape = "graspa"
	ShapeRASPA3  Shape = "raspa3"
)

// Detect guesses the report shape from its anchors.
func Detect(text string) Shape {
	switch {
	case strings.Contains(text, "BLOCK AVERAGES (") || strings.Contains(text, henryAnchor) || strings.Contains(text, graspaEndMarker):
		return ShapeGRASPA
	case strings.Contains(text, "(Adsorbate molecule)") || strings.Contains(text, "Simulation finished") || strings.Contains(text, "Average loading absolute"):
		return ShapeRASPA2
	case strings.Contains(text, "Abs. loading average"):
		return ShapeRASPA3
	}
	return ShapeUnknown
}
