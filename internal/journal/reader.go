package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/router"
)

// ReadFile loads a recorded session into normalized events, in file order.
//
// Two layouts are accepted: JSONL as written by the Writer, and a single
// JSON array as produced by older recording scripts. Individual records
// may additionally be double-encoded (a JSON string containing the event
// object). Records of untracked event types are skipped.
func ReadFile(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	records, err := splitRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	now := time.Now()
	events := make([]model.Event, 0, len(records))
	for i, rec := range records {
		raw, err := unquoteRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", path, i, err)
		}

		ev, err := router.ParseEvent(raw, now)
		if errors.Is(err, router.ErrUnknownEvent) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", path, i, err)
		}
		events = append(events, ev)
	}

	return events, nil
}

// splitRecords separates a session file into raw JSON records.
func splitRecords(data []byte) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse array session: %w", err)
		}
		return records, nil
	}

	var records []json.RawMessage
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		records = append(records, json.RawMessage(line))
	}
	return records, nil
}

// unquoteRecord unwraps a double-encoded record if needed.
func unquoteRecord(rec json.RawMessage) ([]byte, error) {
	if len(rec) == 0 || rec[0] != '"' {
		return rec, nil
	}
	var s string
	if err := json.Unmarshal(rec, &s); err != nil {
		return nil, fmt.Errorf("unquote record: %w", err)
	}
	return []byte(s), nil
}
