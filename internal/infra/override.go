package infra

import (
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/schedmon/internal/domain"
)

const overrideMarkerName = ".manual_session"

// FileOverrideGate implements domain.OverrideGate by checking for a marker
// file the manual-session feature drops while an ad hoc block is running.
// The gate only reads presence; creating and removing the marker belongs to
// the manual-session collaborator.
type FileOverrideGate struct {
	markerPath string
}

// NewFileOverrideGate creates an override gate reading the marker under dataDir.
func NewFileOverrideGate(dataDir string) *FileOverrideGate {
	return &FileOverrideGate{markerPath: filepath.Join(dataDir, overrideMarkerName)}
}

// IsManualSessionActive reports whether the manual-session marker exists.
func (g *FileOverrideGate) IsManualSessionActive() bool {
	_, err := os.Stat(g.markerPath)
	return err == nil
}

// MarkerPath returns the marker file path (for tests).
func (g *FileOverrideGate) MarkerPath() string {
	return g.markerPath
}

// Ensure FileOverrideGate implements domain.OverrideGate.
var _ domain.OverrideGate = (*FileOverrideGate)(nil)
