package log

import (
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// getDefaultDir returns the per-user log directory: ~/Library/Logs/brio on
// macOS, $XDG_STATE_HOME/brio elsewhere on Unix, %LOCALAPPDATA%\brio on Windows.
func getDefaultDir() (string, error) {
	p, err := gap.NewScope(gap.User, "brio").LogPath("diagnostics_log.txt")
	if err != nil {
		return "", err
	}
	return filepath.Dir(p), nil
}
