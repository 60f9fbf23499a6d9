package corpus

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/samber/lo"
)

// ErrDataSourceNotFound is returned when the corpus file does not exist.
var ErrDataSourceNotFound = errors.New("training data source not found")

// Record is one labelled fault description.
type Record struct {
	Description string
	Category    string
	Priority    string
}

// Complete reports whether every field needed for training is present.
func (r Record) Complete() bool {
	return r.Description != "" && r.Category != "" && r.Priority != ""
}

// Load reads a CSV corpus with description, category and priority columns.
func Load(path string) ([]Record, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrDataSourceNotFound)
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDataSourceNotFound, path)
		}
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer file.Close()

	return Read(file)
}

// Read parses CSV rows from r. The header row decides column positions; extra columns are ignored.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus header: %w", err)
	}
	cols, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read corpus row: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		records = append(records, Record{
			Description: field(row, cols.description),
			Category:    field(row, cols.category),
			Priority:    field(row, cols.priority),
		})
	}
	return records, nil
}

// Filter drops records missing any training field and returns the number dropped.
func Filter(records []Record) ([]Record, int) {
	kept := lo.Filter(records, func(r Record, _ int) bool {
		return r.Complete()
	})
	return kept, len(records) - len(kept)
}

// Descriptions, Categories and Priorities project a record slice onto one column.
func Descriptions(records []Record) []string {
	return lo.Map(records, func(r Record, _ int) string { return r.Description })
}

func Categories(records []Record) []string {
	return lo.Map(records, func(r Record, _ int) string { return r.Category })
}

func Priorities(records []Record) []string {
	return lo.Map(records, func(r Record, _ int) string { return r.Priority })
}

type columns struct {
	description int
	category    int
	priority    int
}

func detectColumns(header []string) (columns, error) {
	cols := columns{description: -1, category: -1, priority: -1}
	for idx, value := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "\ufeff")))
		switch normalized {
		case "description":
			cols.description = idx
		case "category":
			cols.category = idx
		case "priority":
			cols.priority = idx
		}
	}
	var missing []string
	if cols.description < 0 {
		missing = append(missing, "description")
	}
	if cols.category < 0 {
		missing = append(missing, "category")
	}
	if cols.priority < 0 {
		missing = append(missing, "priority")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("corpus header missing columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
