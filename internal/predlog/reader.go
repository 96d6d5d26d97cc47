package predlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// maxLineSize bounds a single log line.
const maxLineSize = 4 << 20

// ReadStats summarizes a log read.
type ReadStats struct {
	Lines     int // non-empty lines seen
	Malformed int // lines skipped because they did not decode
}

// legacyCaller picks up the user_id field written by older services.
type legacyCaller struct {
	UserID string `json:"user_id"`
}

// Read decodes JSON-lines entries from r. Blank lines are ignored and lines
// that fail to decode are skipped and counted rather than failing the read.
func Read(r io.Reader) ([]Entry, ReadStats, error) {
	var (
		entries []Entry
		stats   ReadStats
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil || e.ModelName == "" {
			stats.Malformed++
			continue
		}
		if e.CallerID == "" {
			var legacy legacyCaller
			if json.Unmarshal(line, &legacy) == nil {
				e.CallerID = legacy.UserID
			}
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, stats, fmt.Errorf("failed to read prediction log: %w", err)
	}
	return entries, stats, nil
}

// ReadFile reads the log at path. A missing file is an empty log.
func ReadFile(path string) ([]Entry, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ReadStats{}, nil
		}
		return nil, ReadStats{}, fmt.Errorf("failed to open prediction log: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// UnmarshalJSON accepts timestamps with or without a zone offset.
func (e *Entry) UnmarshalJSON(data []byte) error {
	type plain Entry
	aux := struct {
		*plain
		Timestamp string `json:"timestamp"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, aux.Timestamp); err == nil {
			e.Timestamp = ts
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", aux.Timestamp)
}
