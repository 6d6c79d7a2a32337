package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/gestor/internal/domain/model"
)

// readDataset loads records from path, or from stdin when path is "-".
// Both a bare JSON array and an object with a "records" array are accepted.
func readDataset(path string, stdin io.Reader) ([]model.ClientRecord, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrDataset, path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var doc struct {
			Records []model.ClientRecord `json:"records"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDataset, path, err)
		}
		if doc.Records == nil {
			return nil, fmt.Errorf("%w: %s has no records array", ErrDataset, path)
		}
		return doc.Records, nil
	}

	var records []model.ClientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataset, path, err)
	}
	if records == nil {
		records = []model.ClientRecord{}
	}
	return records, nil
}
