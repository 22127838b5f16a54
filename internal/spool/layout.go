package spool

import (
	"fmt"
	"os"
	"path/filepath"
)

// Stage names the pipeline directories under the spool root.
type Stage string

const (
	StageIncoming   Stage = "Incoming"
	StageProcessing Stage = "Processing"
	StageDone       Stage = "Done"
	StageUnmatched  Stage = "Unmatched"
	StageError      Stage = "Error"
)

var allStages = []Stage{StageIncoming, StageProcessing, StageDone, StageUnmatched, StageError}

// Layout resolves stage directories below a spool root.
type Layout struct {
	root string
}

// NewLayout creates a layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{root: dir}
}

// Root returns the spool root directory.
func (l Layout) Root() string { return l.root }

// Dir returns the absolute path of a stage directory.
func (l Layout) Dir(stage Stage) string {
	return filepath.Join(l.root, string(stage))
}

// Ensure creates the spool root and every stage directory.
func (l Layout) Ensure() error {
	for _, stage := range allStages {
		if err := os.MkdirAll(l.Dir(stage), 0o755); err != nil {
			return fmt.Errorf("create spool stage %s: %w", stage, err)
		}
	}
	return nil
}
