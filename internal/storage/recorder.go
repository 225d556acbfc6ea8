package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bottlecap/internal/driver"
)

// Recorder writes ticks to a run directory. It is a driver.Observer; write
// errors are kept and reported by Close.
type Recorder struct {
	dir   string
	meta  RunMetadata
	every uint64
	file  *os.File
	w     *csv.Writer
	seen  uint64
	last  driver.Tick
	err   error
}

func (r *Recorder) ID() string { return r.meta.ID }

func (r *Recorder) OnTick(t driver.Tick) {
	r.seen++
	r.last = t
	if r.err != nil {
		return
	}
	if !t.Changed && (r.seen-1)%r.every != 0 {
		return
	}

	row := []string{
		formatFloat(t.Elapsed.Seconds()),
		t.Phase.String(),
		formatFloat(t.Theta),
		formatFloat(t.X.X), formatFloat(t.X.Y), formatFloat(t.X.Z),
		formatFloat(t.XDes.X), formatFloat(t.XDes.Y), formatFloat(t.XDes.Z),
		formatFloat(floats.Norm(t.Torque, 2)),
		boolField(t.Guarded),
	}
	r.err = r.w.Write(row)
}

// Close flushes the tick log and writes metadata.json with the final
// metrics and the run's terminal error, if any.
func (r *Recorder) Close(metrics map[string]float64, runErr error) error {
	r.w.Flush()
	if err := r.w.Error(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = err
	}

	r.meta.Duration = r.last.Elapsed.Seconds()
	r.meta.Ticks = r.last.Count
	r.meta.FinalPhase = r.last.Phase.String()
	r.meta.Metrics = metrics
	if runErr != nil {
		r.meta.Error = runErr.Error()
	}

	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.meta); err != nil {
		return err
	}
	return r.err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
