package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gcmc-batch/internal/domain"
)

// ZeoHeaders are the columns of a Zeo++ descriptor summary.
var ZeoHeaders = []string{
	"name",
	"LCD",
	"PLD",
	"density(g/cm^3)",
	"VSA(m^2/cm^3)",
	"GSA(m^2/g)",
	"Vp(cm^3/g)",
	"void_fraction",
}

// zeoExtensions are the Zeo++ result files read per structure, in order.
var zeoExtensions = []string{".res", ".sa", ".vol"}

// ParsePoreDiameters reads a Zeo++ -res file: "<name> <Di> <Df> <Dif>".
// LCD is taken from the fourth field and PLD from the third.
func ParsePoreDiameters(text string) (map[string]string, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: pore diameter line has %d fields", domain.ErrExtraction, len(fields))
	}
	values := map[string]string{"LCD": fields[3], "PLD": fields[2]}
	for k, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("%w: bad %s %q", domain.ErrExtraction, k, v)
		}
	}
	return values, nil
}

// ParseSurfaceArea reads a Zeo++ -sa file.
func ParseSurfaceArea(text string) (map[string]string, error) {
	return labelled(text, map[string]string{
		"Density:":      "density(g/cm^3)",
		"ASA_m^2/cm^3:": "VSA(m^2/cm^3)",
		"ASA_m^2/g:":    "GSA(m^2/g)",
	})
}

// ParsePoreVolume reads a Zeo++ -vol file.
func ParsePoreVolume(text string) (map[string]string, error) {
	return labelled(text, map[string]string{
		"AV_cm^3/g:":          "Vp(cm^3/g)",
		"AV_Volume_fraction:": "void_fraction",
	})
}

// labelled picks the token following each label. Every label must be present
// and followed by a number.
func labelled(text string, labels map[string]string) (map[string]string, error) {
	fields := strings.Fields(text)
	values := make(map[string]string, len(labels))
	for i := 0; i+1 < len(fields); i++ {
		column, ok := labels[fields[i]]
		if !ok {
			continue
		}
		if _, seen := values[column]; seen {
			continue
		}
		if _, err := strconv.ParseFloat(fields[i+1], 64); err != nil {
			return nil, fmt.Errorf("%w: bad %s %q", domain.ErrExtraction, fields[i], fields[i+1])
		}
		values[column] = fields[i+1]
	}
	for label, column := range labels {
		if _, ok := values[column]; !ok {
			return nil, fmt.Errorf("%w: %s not reported", domain.ErrExtraction, strings.TrimSuffix(label, ":"))
		}
	}
	return values, nil
}

// SummarizeZeo collects the Zeo++ descriptors of every structure in names
// from the .res, .sa and .vol files under dir. With no names, every
// structure that has at least one of those files is summarized, in lexical
// order. A structure without any file, or with a malformed one, becomes an
// error row.
func SummarizeZeo(dir string, names []string) (*Summary, error) {
	if len(names) == 0 {
		found, err := zeoStructures(dir)
		if err != nil {
			return nil, err
		}
		names = found
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no .res, .sa or .vol files in %s", domain.ErrConfiguration, dir)
	}

	summary := &Summary{Headers: ZeoHeaders}
	for _, name := range names {
		values, err := zeoDescriptors(dir, name)
		if err != nil {
			summary.Records = append(summary.Records, domain.FailedRecord(name))
			continue
		}
		summary.Records = append(summary.Records, domain.ResultRecord{Key: name, Values: values})
	}
	return summary, nil
}

func zeoDescriptors(dir, name string) (map[string]string, error) {
	values := make(map[string]string)
	read := 0
	for _, ext := range zeoExtensions {
		data, err := os.ReadFile(filepath.Join(dir, name+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var parsed map[string]string
		switch ext {
		case ".res":
			parsed, err = ParsePoreDiameters(string(data))
		case ".sa":
			parsed, err = ParseSurfaceArea(string(data))
		case ".vol":
			parsed, err = ParsePoreVolume(string(data))
		}
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", name, ext, err)
		}
		for k, v := range parsed {
			values[k] = v
		}
		read++
	}
	if read == 0 {
		return nil, fmt.Errorf("%w: no Zeo++ output for %s", domain.ErrExtraction, name)
	}
	return values, nil
}

func zeoStructures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !contains(zeoExtensions, ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
