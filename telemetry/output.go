package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/scrapline/config"
)

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir           string
	telemetryFile *os.File
	perfFile      *os.File
	bookmarkFile  *os.File
	runsFile      *os.File

	// Track if headers have been written
	telemetryHeaderWritten bool
	perfHeaderWritten      bool
	bookmarkHeaderWritten  bool
	runsHeaderWritten      bool
}

// RunRow is one finished run in runs.csv.
type RunRow struct {
	Mode        string  `csv:"mode"` // story or endless
	PilotID     string  `csv:"pilot"`
	Difficulty  string  `csv:"difficulty"`
	Outcome     string  `csv:"outcome"`
	Reached     int     `csv:"reached"` // Stage or wave
	Score       int     `csv:"score"`
	DurationMs  int64   `csv:"duration_ms"`
	DamageDealt float64 `csv:"damage_dealt"`
	DamageTaken float64 `csv:"damage_taken"`
	Kills       int     `csv:"kills"`
	Turns       int     `csv:"turns"`
	Crits       int     `csv:"crits"`
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	// Create output directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	// Open telemetry.csv
	telemetryPath := filepath.Join(dir, "telemetry.csv")
	f, err := os.Create(telemetryPath)
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	om.telemetryFile = f

	// Open perf.csv
	perfPath := filepath.Join(dir, "perf.csv")
	f, err = os.Create(perfPath)
	if err != nil {
		om.telemetryFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	// Open bookmarks.csv
	bookmarkPath := filepath.Join(dir, "bookmarks.csv")
	f, err = os.Create(bookmarkPath)
	if err != nil {
		om.telemetryFile.Close()
		om.perfFile.Close()
		return nil, fmt.Errorf("creating bookmarks.csv: %w", err)
	}
	om.bookmarkFile = f

	// Open runs.csv
	runsPath := filepath.Join(dir, "runs.csv")
	f, err = os.Create(runsPath)
	if err != nil {
		om.telemetryFile.Close()
		om.perfFile.Close()
		om.bookmarkFile.Close()
		return nil, fmt.Errorf("creating runs.csv: %w", err)
	}
	om.runsFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}

	records := []WindowStats{stats}

	if !om.telemetryHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		om.telemetryHeaderWritten = true
	} else {
		// Subsequent writes skip headers
		if err := gocsv.MarshalWithoutHeaders(records, om.telemetryFile); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
	}

	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEndMs int64) error {
	if om == nil {
		return nil
	}

	records := []PerfRow{stats.Row(windowEndMs)}

	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}

	records := []Bookmark{b}

	if !om.bookmarkHeaderWritten {
		if err := gocsv.Marshal(records, om.bookmarkFile); err != nil {
			return fmt.Errorf("writing bookmark: %w", err)
		}
		om.bookmarkHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.bookmarkFile); err != nil {
			return fmt.Errorf("writing bookmark: %w", err)
		}
	}

	return nil
}

// WriteRun writes a finished run to runs.csv.
func (om *OutputManager) WriteRun(row RunRow) error {
	if om == nil {
		return nil
	}

	records := []RunRow{row}

	if !om.runsHeaderWritten {
		if err := gocsv.Marshal(records, om.runsFile); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
		om.runsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.runsFile); err != nil {
			return fmt.Errorf("writing run: %w", err)
		}
	}

	return nil
}

// WriteLeaderboard saves the leaderboard as JSON and CSV.
func (om *OutputManager) WriteLeaderboard(lb *Leaderboard) error {
	if om == nil || lb == nil {
		return nil
	}

	data, err := json.MarshalIndent(lb.Entries(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling leaderboard: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "leaderboard.json"), data, 0644); err != nil {
		return fmt.Errorf("writing leaderboard.json: %w", err)
	}

	f, err := os.Create(filepath.Join(om.dir, "leaderboard.csv"))
	if err != nil {
		return fmt.Errorf("creating leaderboard.csv: %w", err)
	}
	defer f.Close()
	if err := gocsv.Marshal(lb.Rows(), f); err != nil {
		return fmt.Errorf("writing leaderboard.csv: %w", err)
	}

	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.telemetryFile != nil {
		if err := om.telemetryFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.bookmarkFile != nil {
		if err := om.bookmarkFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.runsFile != nil {
		if err := om.runsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
