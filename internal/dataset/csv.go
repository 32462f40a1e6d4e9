package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Split holds the pre-split train/test sets plus the ordered target list.
// Crucible never re-splits data; the files are produced upstream.
type Split struct {
	Train   []Sample
	Test    []Sample
	Targets []string
}

const compositionColumn = "composition"

// LoadSplit reads train and test CSV files. Both files must carry a header
// row containing a composition column and every requested target column;
// remaining columns become ordered features. Target cells may be empty in
// the test file.
func LoadSplit(trainPath, testPath string, targets []string) (*Split, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one target column is required")
	}
	train, err := loadFile(trainPath, targets, true)
	if err != nil {
		return nil, fmt.Errorf("load train set: %w", err)
	}
	test, err := loadFile(testPath, targets, false)
	if err != nil {
		return nil, fmt.Errorf("load test set: %w", err)
	}
	ordered := append([]string(nil), targets...)
	return &Split{Train: train, Test: test, Targets: ordered}, nil
}

func loadFile(path string, targets []string, requireTargets bool) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	header := rows[0]
	compositionIdx := -1
	targetIdx := make(map[string]int, len(targets))
	for i, name := range header {
		trimmed := strings.TrimSpace(name)
		if strings.EqualFold(trimmed, compositionColumn) && compositionIdx < 0 {
			compositionIdx = i
			continue
		}
		for _, target := range targets {
			if trimmed == target {
				targetIdx[target] = i
			}
		}
	}
	if compositionIdx < 0 {
		return nil, fmt.Errorf("dataset %s is missing a %q column", path, compositionColumn)
	}
	for _, target := range targets {
		if _, ok := targetIdx[target]; !ok {
			return nil, fmt.Errorf("dataset %s is missing target column %q", path, target)
		}
	}

	targetColumns := make(map[int]struct{}, len(targetIdx))
	for _, idx := range targetIdx {
		targetColumns[idx] = struct{}{}
	}

	samples := make([]Sample, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		sample := Sample{
			Index:       rowNum,
			Composition: strings.TrimSpace(row[compositionIdx]),
			Targets:     make(map[string]float64, len(targets)),
		}
		if sample.Composition == "" {
			return nil, fmt.Errorf("dataset %s row %d has an empty composition", path, rowNum+2)
		}
		for i, cell := range row {
			if i == compositionIdx {
				continue
			}
			if _, ok := targetColumns[i]; ok {
				continue
			}
			if i >= len(header) {
				continue
			}
			sample.Features = append(sample.Features, Feature{
				Key:   strings.TrimSpace(header[i]),
				Value: strings.TrimSpace(cell),
			})
		}
		for _, target := range targets {
			cell := strings.TrimSpace(row[targetIdx[target]])
			if cell == "" {
				if requireTargets {
					return nil, fmt.Errorf("dataset %s row %d is missing value for target %q", path, rowNum+2, target)
				}
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset %s row %d target %q: parse %q: %w", path, rowNum+2, target, cell, err)
			}
			sample.Targets[target] = value
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
