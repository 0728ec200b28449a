package helpers

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/record"
)

// Source formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// LoadSource reads a data file and returns a value Collect accepts: a
// record slice for CSV, a decoded document for JSON. An empty format is
// taken from the file extension.
func LoadSource(path, format string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading source")
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	return ParseSource(data, format)
}

// ParseSource decodes data in the given format.
func ParseSource(data []byte, format string) (any, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		v, err := record.DecodeJSON(data)
		if err != nil {
			return nil, err
		}
		return v, nil
	case FormatCSV:
		records, _, err := ParseCSV(data)
		if err != nil {
			return nil, err
		}
		return records, nil
	}
	return nil, errors.Errorf("unsupported source format %q", format)
}
