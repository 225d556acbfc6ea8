// Package storage records controller runs to disk and reads them back.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
)

const (
	metadataFile = "metadata.json"
	ticksFile    = "ticks.csv"
)

var tickHeader = []string{
	"time", "phase", "theta",
	"x", "y", "z",
	"x_des", "y_des", "z_des",
	"torque_norm", "guarded",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	World        string             `json:"world"`
	Robot        string             `json:"robot"`
	Name         string             `json:"name"`
	Timestamp    time.Time          `json:"timestamp"`
	FrequencyHz  int                `json:"frequency_hz"`
	AlignVariant string             `json:"align_variant"`
	Topology     string             `json:"topology"`
	Duration     float64            `json:"duration"`
	Ticks        uint64             `json:"ticks"`
	FinalPhase   string             `json:"final_phase"`
	Metrics      map[string]float64 `json:"metrics"`
	Error        string             `json:"error,omitempty"`
}

// Series is a recorded run loaded back into columns.
type Series struct {
	Time       []float64
	Phase      []string
	Theta      []float64
	X          []r3.Vector
	XDes       []r3.Vector
	TorqueNorm []float64
	Guarded    []bool
}

func (s *Series) Len() int { return len(s.Time) }

// List returns the recorded runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

func (s *Store) LoadTicks(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.Dir(runID), ticksFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	series := &Series{}
	if len(records) < 2 {
		return series, nil
	}

	for _, record := range records[1:] {
		if len(record) != len(tickHeader) {
			continue
		}

		vals := make([]float64, len(record))
		ok := true
		for j, field := range record {
			if j == 1 {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				ok = false
				break
			}
			vals[j] = v
		}
		if !ok {
			continue
		}

		series.Time = append(series.Time, vals[0])
		series.Phase = append(series.Phase, record[1])
		series.Theta = append(series.Theta, vals[2])
		series.X = append(series.X, r3.Vector{X: vals[3], Y: vals[4], Z: vals[5]})
		series.XDes = append(series.XDes, r3.Vector{X: vals[6], Y: vals[7], Z: vals[8]})
		series.TorqueNorm = append(series.TorqueNorm, vals[9])
		series.Guarded = append(series.Guarded, vals[10] != 0)
	}

	return series, nil
}

// Start creates a new run directory and returns a recorder writing into
// it. Every nth tick is kept, plus every tick that changed phase.
func (s *Store) Start(meta RunMetadata, every int) (*Recorder, error) {
	if every < 1 {
		every = 1
	}
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	runDir := s.Dir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, err
	}

	f, err := os.Create(filepath.Join(runDir, ticksFile))
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(tickHeader); err != nil {
		f.Close()
		return nil, err
	}

	return &Recorder{dir: runDir, meta: meta, every: uint64(every), file: f, w: w}, nil
}
