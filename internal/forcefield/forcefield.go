// internal/forcefield/forcefield.go
package forcefield

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gcmc-batch/internal/structure"
)

const (
	MixingRulesFile = "force_field_mixing_rules.def"
	PseudoAtomsFile = "pseudo_atoms.def"
)

// Stage copies every regular file of src into dst.
func Stage(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("failed to read force field directory: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := CopyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// MoleculeLabels returns the distinct pseudo-atom labels of a molecule
// definition file. The atom count is read from the sixth line; each atom
// line carries its label in the second column.
func MoleculeLabels(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) < 6 {
		return nil, fmt.Errorf("molecule definition %s is too short", path)
	}
	fields := strings.Fields(lines[5])
	if len(fields) == 0 {
		return nil, fmt.Errorf("molecule definition %s: missing atom count", path)
	}
	nAtoms, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("molecule definition %s: bad atom count %q", path, fields[0])
	}

	var labels []string
	count := 0
	for _, line := range lines[6:] {
		if strings.Contains(line, "atomic positions") {
			count = 0
		}
		if count >= nAtoms || strings.Contains(line, "#") {
			continue
		}
		if f := strings.Fields(line); len(f) > 1 {
			labels = append(labels, f[1])
			count++
		}
	}
	return dedupe(labels), nil
}

// Prune rewrites the mixing rules and pseudo atoms files in dir so they keep
// only the interactions of labels. Header lines are preserved and the
// declared entry count is updated to the number of entries kept.
func Prune(dir string, labels []string) error {
	keep := make(map[string]bool, len(labels))
	for _, l := range labels {
		keep[l] = true
	}
	// mixing rules: count on line 6, entries start on line 8
	if err := pruneTable(filepath.Join(dir, MixingRulesFile), 5, 7, keep); err != nil {
		return err
	}
	// pseudo atoms: count on line 2, entries start on line 4
	return pruneTable(filepath.Join(dir, PseudoAtomsFile), 1, 3, keep)
}

// PruneForSystem prunes the force field in dir to the labels of the named
// frameworks (<name>.cif) and adsorbates (<name>.def) staged there. Names
// without a file in dir contribute no labels.
func PruneForSystem(dir string, frameworks, adsorbates []string) error {
	var labels []string
	for _, fw := range frameworks {
		path := filepath.Join(dir, fw+".cif")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l, err := structure.FrameworkLabels(path)
		if err != nil {
			return err
		}
		labels = append(labels, l...)
	}
	for _, ad := range adsorbates {
		path := filepath.Join(dir, ad+".def")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l, err := MoleculeLabels(path)
		if err != nil {
			return err
		}
		labels = append(labels, l...)
	}
	return Prune(dir, dedupe(labels))
}

func pruneTable(path string, countLine, firstEntry int, keep map[string]bool) error {
	lines, err := readLines(path)
	if err != nil {
		return err
	}
	if len(lines) <= countLine {
		return fmt.Errorf("%s: missing entry count", filepath.Base(path))
	}
	fields := strings.Fields(lines[countLine])
	if len(fields) == 0 {
		return fmt.Errorf("%s: missing entry count", filepath.Base(path))
	}
	declared, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("%s: bad entry count %q", filepath.Base(path), fields[0])
	}

	end := firstEntry + declared
	if end > len(lines) {
		end = len(lines)
	}
	var entries []string
	for _, line := range lines[min(firstEntry, len(lines)):end] {
		f := strings.Fields(line)
		if len(f) > 0 && keep[f[0]] {
			entries = append(entries, line)
		}
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[:min(firstEntry, len(lines))]...)
	out[countLine] = strconv.Itoa(len(entries))
	out = append(out, entries...)
	out = append(out, lines[end:]...)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(out, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
