package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Source formats accepted by ParseSource.
const (
	FormatJSON  = "json"  // one JSON array of records
	FormatJSONL = "jsonl" // one record per line
)

// ErrUnsupportedFormat indicates a source format ParseSource does not
// understand.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// SourceRecord is one record of raw ingestion input. Exactly one of
// Text or Filename must be set; Filename is resolved against the
// pipeline's root directory at batch time.
type SourceRecord struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// ParseSource decodes ingestion input. The whole source is validated
// up front: a record without an id, or with neither text nor filename,
// fails the parse immediately rather than surfacing later as a batch
// failure.
func ParseSource(r io.Reader, format string) ([]SourceRecord, error) {
	var records []SourceRecord

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("decoding json source: %w", err)
		}
	case FormatJSONL:
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var rec SourceRecord
			if err := json.Unmarshal([]byte(text), &rec); err != nil {
				return nil, fmt.Errorf("decoding jsonl source line %d: %w", line, err)
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading jsonl source: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		if rec.Text == "" && rec.Filename == "" {
			return nil, fmt.Errorf("record %d (%s) has neither text nor filename", i, rec.ID)
		}
	}
	return records, nil
}
