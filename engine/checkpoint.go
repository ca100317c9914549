package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Checkpoint remembers how far a run got through the input.
// LastProcessedIndex counts documents completed in assembled order; a
// resumed run skips that many documents and starts on the next one.
type Checkpoint struct {
	LastProcessedIndex int    `json:"last_processed_index"`
	Entity             string `json:"entity,omitempty"`
	InputFile          string `json:"input_file,omitempty"`
}

// CheckpointPath keeps one checkpoint per entity/input pair under the runs
// root, so it survives across run directories.
func CheckpointPath(runsRoot, entity, inputFile string) string {
	base := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	return filepath.Join(runsRoot, fmt.Sprintf("checkpoint_%s_%s.json", entity, base))
}

// LoadCheckpoint returns the stored checkpoint, or a zero one when none
// exists.
func LoadCheckpoint(path string) (Checkpoint, error) {
	var cp Checkpoint
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return cp, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return cp, nil
}

// StoreCheckpoint writes atomically via rename so an interrupt mid-write
// never leaves a truncated file.
func StoreCheckpoint(path string, cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

// ClearCheckpoint removes the file once a run completes cleanly.
func ClearCheckpoint(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
