package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcmc-batch/internal/domain"
)

const raspaTemplate = `SimulationType                MonteCarlo
NumberOfCycles                50000
CutOffVDW                     {cutoff}
Framework 0
FrameworkName {cif_name}
UnitCells {unitcell}
ExternalTemperature {temperature}
ExternalPressure    {pressure}

Component 0 MoleculeName             CO2
            MoleculeDefinition       TraPPE
Component 1 MoleculeName             N2
            MoleculeDefinition       TraPPE
`

func TestTemplate_Render(t *testing.T) {
	rendered := Parse(raspaTemplate).Render(Values{
		CIFName:     "MOF-5",
		UnitCells:   "2 2 2",
		Cutoff:      12,
		Temperature: "298",
		Pressure:    "100000",
	})

	assert.Contains(t, rendered, "CutOffVDW                     12.0\n")
	assert.Contains(t, rendered, "FrameworkName MOF-5\n")
	assert.Contains(t, rendered, "UnitCells 2 2 2\n")
	assert.Contains(t, rendered, "ExternalTemperature 298\n")
	assert.Contains(t, rendered, "ExternalPressure    100000\n")
	assert.NotContains(t, rendered, "{")
}

func TestTemplate_RenderCapitalizedPlaceholders(t *testing.T) {
	rendered := Parse("T {Temperature} P {Pressure} rc {cutoff}").Render(Values{Temperature: "77", Pressure: "1e5", Cutoff: 12.8})
	assert.Equal(t, "T 77 P 1e5 rc 12.8", rendered)
}

func TestTemplate_Components(t *testing.T) {
	assert.Equal(t, []string{"CO2", "N2"}, Parse(raspaTemplate).Components())
	assert.Empty(t, Parse("SimulationType MonteCarlo\n").Components())
}

func TestFrameworksAndAdsorbates(t *testing.T) {
	rendered := Parse(raspaTemplate).Render(Values{CIFName: "MOF-5"})
	assert.Equal(t, []string{"MOF-5"}, Frameworks(rendered))
	assert.Equal(t, []string{"CO2", "N2"}, Adsorbates(rendered))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulation.input")
	require.NoError(t, os.WriteFile(path, []byte(raspaTemplate), 0o644))

	tpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, raspaTemplate, tpl.Text())

	_, err = Load(filepath.Join(t.TempDir(), "missing.input"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
