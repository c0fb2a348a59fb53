// Package dataimport reads labelled vectors from CSV or JSON files and writes
// embeddings back out in the same formats.
package dataimport

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoVectors is returned when a file parses but holds no vectors.
var ErrNoVectors = errors.New("no vectors found")

// Dataset is a list of vectors with optional labels, in file order.
type Dataset struct {
	Labels  []string
	Vectors [][]float64
}

// Dims returns the length of the first vector.
func (d *Dataset) Dims() int {
	if len(d.Vectors) == 0 {
		return 0
	}
	return len(d.Vectors[0])
}

type jsonVectorObject struct {
	Text   string    `json:"text,omitempty"`
	Label  string    `json:"label,omitempty"`
	Vector []float64 `json:"vector"`
}

// LoadVectors reads a dataset from a .csv or .json file.
//
// JSON files hold either an array of numeric arrays or an array of objects with
// a "vector" field and an optional "text" or "label". CSV files may start with
// a header; a column named "text" or "label" supplies labels and every other
// column must be numeric.
func LoadVectors(path string) (*Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening CSV file: %w", err)
		}
		defer file.Close()
		return readCSV(file)
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading JSON file: %w", err)
		}
		return parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

func parseJSON(data []byte) (*Dataset, error) {
	var arrays [][]float64
	if err := json.Unmarshal(data, &arrays); err == nil {
		if len(arrays) == 0 {
			return nil, ErrNoVectors
		}
		return &Dataset{Labels: make([]string, len(arrays)), Vectors: arrays}, nil
	}

	var objects []jsonVectorObject
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parsing JSON: expected array of numeric arrays or objects with 'vector' field: %w", err)
	}
	if len(objects) == 0 {
		return nil, ErrNoVectors
	}

	ds := &Dataset{
		Labels:  make([]string, 0, len(objects)),
		Vectors: make([][]float64, 0, len(objects)),
	}
	for i, obj := range objects {
		if len(obj.Vector) == 0 {
			return nil, fmt.Errorf("entry %d missing vector field", i)
		}
		label := obj.Label
		if label == "" {
			label = obj.Text
		}
		ds.Labels = append(ds.Labels, label)
		ds.Vectors = append(ds.Vectors, obj.Vector)
	}
	return ds, nil
}

func readCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	labelCol := -1
	rows := records
	if !isNumericRow(records[0]) {
		for i, header := range records[0] {
			name := strings.ToLower(strings.TrimSpace(header))
			if name == "text" || name == "label" {
				labelCol = i
				break
			}
		}
		rows = records[1:]
	}
	if len(rows) == 0 {
		return nil, ErrNoVectors
	}

	ds := &Dataset{
		Labels:  make([]string, 0, len(rows)),
		Vectors: make([][]float64, 0, len(rows)),
	}
	for r, row := range rows {
		vector := make([]float64, 0, len(row))
		label := ""
		for c, field := range row {
			if c == labelCol {
				label = field
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", r+1, c+1, err)
			}
			vector = append(vector, v)
		}
		ds.Labels = append(ds.Labels, label)
		ds.Vectors = append(ds.Vectors, vector)
	}
	return ds, nil
}

func isNumericRow(row []string) bool {
	for _, field := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return false
		}
	}
	return true
}

type jsonEmbeddingObject struct {
	Label       string    `json:"label,omitempty"`
	Coordinates []float64 `json:"coordinates"`
}

// SaveEmbedding writes one row per point to a .csv or .json file. Labels may
// be shorter than the embedding.
func SaveEmbedding(path string, labels []string, embedding [][]float64) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".json":
	default:
		return fmt.Errorf("unsupported file extension: %s", ext)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if ext == ".csv" {
		err = WriteCSV(file, labels, embedding)
	} else {
		err = writeJSON(file, labels, embedding)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	return err
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}

// WriteCSV writes the embedding as CSV with a label,x,y header.
func WriteCSV(w io.Writer, labels []string, embedding [][]float64) error {
	dims := 0
	if len(embedding) > 0 {
		dims = len(embedding[0])
	}

	writer := csv.NewWriter(w)
	header := []string{"label"}
	for d := range dims {
		header = append(header, coordinateName(d, dims))
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	for i, row := range embedding {
		record := []string{labelAt(labels, i)}
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func coordinateName(d, dims int) string {
	if dims <= 3 {
		return string(rune('x' + d))
	}
	return "c" + strconv.Itoa(d)
}

func writeJSON(w io.Writer, labels []string, embedding [][]float64) error {
	objects := make([]jsonEmbeddingObject, len(embedding))
	for i, row := range embedding {
		objects[i] = jsonEmbeddingObject{Label: labelAt(labels, i), Coordinates: row}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(objects); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
