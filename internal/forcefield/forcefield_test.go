package forcefield

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mixingRules = `# general rule for shifted vs truncated
shifted
# general rule tailcorrections
no
# number of defined interactions
4
# type interaction, parameters.
Zn_        lennard-jones    62.3992  2.46155
O_co2      lennard-jones    79.0     3.05
C_co2      lennard-jones    27.0     2.80
Cu_        lennard-jones    2.5161   3.11369
# general mixing rule for Lennard-Jones
Lorentz-Berthelot
`

const pseudoAtoms = `#number of pseudo atoms
4
#type      print   as    chem  oxidation   mass        charge
Zn_        yes     Zn    Zn    0           65.37       0.0
O_co2      yes     O     O     0           15.9994    -0.3256
C_co2      yes     C     C     0           12.0        0.6512
Cu_        yes     Cu    Cu    0           63.546      0.0
`

const co2Def = `# critical constants: Temperature [T], Pressure [Pa], and Acentric factor [-]
304.1282
7377300.0
0.22394
# Number Of Atoms
3
# Number Of Groups
1
# CO2-group
rigid
# number of atoms
3
# atomic positions
0 O_co2     0.0           0.0           1.149
1 C_co2     0.0           0.0           0.0
2 O_co2     0.0           0.0          -1.149
# Chiral centers Bond  BondDipoles Bend  UrayBradley InvBend  Torsion Imp. Torsion
               0    2            0    0            0       0        0            0
`

const frameworkCIF = `data_ZIF
_cell_length_a 10
loop_
_atom_site_label
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
Zn_1 0.1 0.2 0.3
Zn_2 0.4 0.5 0.6
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMoleculeLabels(t *testing.T) {
	path := writeFile(t, t.TempDir(), "CO2.def", co2Def)
	labels, err := MoleculeLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"O_co2", "C_co2"}, labels)
}

func TestStage(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, MixingRulesFile, mixingRules)
	writeFile(t, src, PseudoAtomsFile, pseudoAtoms)
	require.NoError(t, os.Mkdir(filepath.Join(src, "nested"), 0o755))

	require.NoError(t, Stage(src, dst))

	got, err := os.ReadFile(filepath.Join(dst, PseudoAtomsFile))
	require.NoError(t, err)
	assert.Equal(t, pseudoAtoms, string(got))
	assert.NoDirExists(t, filepath.Join(dst, "nested"))
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, MixingRulesFile, mixingRules)
	writeFile(t, dir, PseudoAtomsFile, pseudoAtoms)

	require.NoError(t, Prune(dir, []string{"O_co2", "C_co2"}))

	mixing, err := os.ReadFile(filepath.Join(dir, MixingRulesFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(mixing), "\n"), "\n")
	assert.Equal(t, "2", lines[5])
	assert.Contains(t, string(mixing), "O_co2      lennard-jones")
	assert.NotContains(t, string(mixing), "Cu_")
	assert.Equal(t, "Lorentz-Berthelot", lines[len(lines)-1])

	pseudo, err := os.ReadFile(filepath.Join(dir, PseudoAtomsFile))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimRight(string(pseudo), "\n"), "\n")
	assert.Equal(t, "2", lines[1])
	assert.Len(t, lines, 5)
	assert.NotContains(t, string(pseudo), "Zn_")
}

func TestPruneForSystem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, MixingRulesFile, mixingRules)
	writeFile(t, dir, PseudoAtomsFile, pseudoAtoms)
	writeFile(t, dir, "CO2.def", co2Def)
	writeFile(t, dir, "ZIF.cif", frameworkCIF)

	require.NoError(t, PruneForSystem(dir, []string{"ZIF"}, []string{"CO2", "N2"}))

	pseudo, err := os.ReadFile(filepath.Join(dir, PseudoAtomsFile))
	require.NoError(t, err)
	assert.Contains(t, string(pseudo), "Zn_ ")
	assert.Contains(t, string(pseudo), "O_co2")
	assert.NotContains(t, string(pseudo), "Cu_")
	assert.Equal(t, "3", strings.Split(string(pseudo), "\n")[1])
}
