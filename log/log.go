package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	runID    string
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: BRIO_LOG_PATH environment variable
	envPath := os.Getenv("BRIO_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetRunID tags every subsequent line with id. Call before Init.
func SetRunID(id string) {
	runID = id
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	ctx := zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid)
	if runID != "" {
		ctx = ctx.Str("run", runID)
	}
	diagLog = ctx.Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Commit records a committed chord. The character itself is never logged.
func Commit(pattern string, mapped bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("pattern", pattern).
		Bool("mapped", mapped).
		Msg("commit")
}

func Voice(kind string, freq float64, event string) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("kind", kind).
		Float64("freq", freq).
		Str("event", event).
		Msg("voice")
}

func AudioState(state string, sampleRate int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("state", state).
		Int("sample_rate", sampleRate).
		Msg("audio_state")
}

func SessionStart(source, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("mode", mode).
		Msg("session_start")
}

func SessionEnd(commits int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("commits", commits).
		Msg("session_end")
}
