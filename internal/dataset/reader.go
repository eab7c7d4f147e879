package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ErrUnsupportedFormat is returned for files that are not .json, .jsonl/.ndjson or .parquet.
var ErrUnsupportedFormat = errors.New("unsupported snapshot format")

// ReadFile reads catalog records, choosing the format from the file extension.
func ReadFile(path string) ([]Record, error) {
	clean := filepath.Clean(path)
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".parquet":
		records, err := parquet.ReadFile[Record](clean)
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", clean, err)
		}
		return records, nil
	case ".json":
		return readJSONFile(clean, decodeJSONArray)
	case ".jsonl", ".ndjson":
		return readJSONFile(clean, decodeJSONLines)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, clean)
	}
}

func readJSONFile(path string, decode func(io.Reader) ([]Record, error)) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	records, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func decodeJSONArray(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeJSONLines reads one record per line. Blank lines are skipped.
func decodeJSONLines(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
