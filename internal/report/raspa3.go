package report

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
)

var (
	raspa3ComponentRe = regexp.MustCompile(`Component\s+\d+\s+\(([^)\n]*)\)`)
	raspa3ValuesRe    = regexp.MustCompile(`(?s)` +
		`Abs\. loading average\s+([\d.eE+-]+).*?\[molecules/cell\].*?` +
		`Abs\. loading average\s+([\d.eE+-]+).*?\[mol/kg-framework\].*?` +
		`Abs\. loading average\s+([\d.eE+-]+).*?\[mg/g-framework\].*?` +
		`Excess loading average\s+([\d.eE+-]+).*?\[molecules/cell\].*?` +
		`Excess loading average\s+([\d.eE+-]+).*?\[mol/kg-framework\].*?` +
		`Excess loading average\s+([\d.eE+-]+).*?\[mg/g-framework\]`)
	raspa3FileRe = regexp.MustCompile(`output_(\d+)_([\deE+\-.]+)\.s\d+\.txt$`)
)

// LoadingColumns are the per-component columns of a RASPA3 loadings dump.
var LoadingColumns = []string{
	"absolute_molecules/uc",
	"absolute_mol/kg",
	"absolute_mg/g",
	"excess_molecules/uc",
	"excess_mol/kg",
	"excess_mg/g",
}

// ComponentLoading holds the six loading averages of one RASPA3 component,
// in LoadingColumns order.
type ComponentLoading struct {
	Component string
	Values    [6]string
}

// ParseLoadings reads the Loadings section of a RASPA3 output. Components
// whose block lacks any of the six averages are skipped.
func ParseLoadings(text string) ([]ComponentLoading, error) {
	start := strings.Index(text, "Loadings")
	if start < 0 {
		return nil, fmt.Errorf("%w: no Loadings section", domain.ErrExtraction)
	}
	section := text[start:]
	idx := raspa3ComponentRe.FindAllStringSubmatchIndex(section, -1)
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: no components in Loadings section", domain.ErrExtraction)
	}

	var out []ComponentLoading
	for i, loc := range idx {
		end := len(section)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		m := raspa3ValuesRe.FindStringSubmatch(section[loc[1]:end])
		if m == nil {
			continue
		}
		cl := ComponentLoading{Component: strings.TrimSpace(section[loc[2]:loc[3]])}
		for j := range cl.Values {
			f, err := strconv.ParseFloat(m[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: component %s: %v", domain.ErrExtraction, cl.Component, err)
			}
			cl.Values[j] = formatFloat(f)
		}
		out = append(out, cl)
	}
	return out, nil
}

// OutputConditions reads the temperature and pressure encoded in a RASPA3
// output file name of the form output_<T>_<P>.s<N>.txt.
func OutputConditions(fileName string) (temperature, pressure string, ok bool) {
	m := raspa3FileRe.FindStringSubmatch(filepath.Base(fileName))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SummarizeLoadings parses every output*.txt under dir. Files that cannot be
// parsed become error rows keyed by file name.
func SummarizeLoadings(dir string) (*Summary, error) {
	names, err := fs.Glob(os.DirFS(dir), "output*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs in %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no output*.txt files in %s", domain.ErrConfiguration, dir)
	}
	sort.Strings(names)
	files := make([]string, len(names))
	for i, name := range names {
		files[i] = filepath.Join(dir, name)
	}

	parsed := make(map[string][]ComponentLoading, len(files))
	componentSet := make(map[string]bool)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		loadings, err := ParseLoadings(string(data))
		if err != nil {
			continue
		}
		parsed[f] = loadings
		for _, cl := range loadings {
			componentSet[cl.Component] = true
		}
	}

	components := make([]string, 0, len(componentSet))
	for c := range componentSet {
		components = append(components, c)
	}
	sort.Strings(components)

	headers := []string{"name", "finished", "temperature", "pressure"}
	for _, c := range components {
		for _, col := range LoadingColumns {
			headers = append(headers, c+"_"+col)
		}
	}
	headers = append(headers, "warning")

	summary := &Summary{Headers: headers}
	for _, f := range files {
		key := filepath.Base(f)
		loadings, ok := parsed[f]
		if !ok {
			summary.Records = append(summary.Records, domain.FailedRecord(key))
			continue
		}
		values := map[string]string{"finished": "True", "warning": ""}
		if t, p, ok := OutputConditions(f); ok {
			values["temperature"] = t
			values["pressure"] = p
		}
		for _, cl := range loadings {
			for j, col := range LoadingColumns {
				values[cl.Component+"_"+col] = cl.Values[j]
			}
		}
		summary.Records = append(summary.Records, domain.ResultRecord{Key: key, Values: values})
	}
	return summary, nil
}
