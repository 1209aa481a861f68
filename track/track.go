// Package track records the positions of a session. A track file is a
// msgpack encoded Track compressed with zstd.
package track

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/a-bouts/race-engine/session"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

type Point struct {
	Time      time.Time `msgpack:"t" json:"time"`
	Lat       float64   `msgpack:"la" json:"lat"`
	Lon       float64   `msgpack:"lo" json:"lon"`
	Heading   float64   `msgpack:"h" json:"heading"`
	BoatSpeed float64   `msgpack:"s" json:"boatSpeed"`
	Gate      int       `msgpack:"g" json:"gate"`
}

type Track struct {
	SessionID string  `msgpack:"id" json:"sessionId"`
	Course    string  `msgpack:"course" json:"course"`
	Finished  bool    `msgpack:"finished" json:"finished"`
	Points    []Point `msgpack:"points" json:"points"`
}

// Recorder keeps one point per interval of course time, plus every gate
// change and the final state. Record is called from the simulation
// goroutine, the other methods from anywhere.
type Recorder struct {
	every time.Duration

	mu    sync.Mutex
	track Track
	last  time.Time
	gate  int
}

func NewRecorder(course string, every time.Duration) *Recorder {
	return &Recorder{every: every, track: Track{Course: course}, gate: -1}
}

func (r *Recorder) Record(s session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.track.SessionID = s.SessionID
	due := len(r.track.Points) == 0 || s.CourseTime.Sub(r.last) >= r.every
	if !due && s.NextGateIndex == r.gate && !s.Done() {
		return
	}
	if n := len(r.track.Points); n > 0 && r.track.Points[n-1].Time.Equal(s.CourseTime) {
		r.track.Points = r.track.Points[:n-1]
	}
	r.track.Points = append(r.track.Points, Point{
		Time:      s.CourseTime,
		Lat:       s.Position.Lat,
		Lon:       s.Position.Lon,
		Heading:   s.Heading,
		BoatSpeed: s.BoatSpeed,
		Gate:      s.NextGateIndex,
	})
	r.track.Finished = s.RaceFinished
	r.last = s.CourseTime
	r.gate = s.NextGateIndex
}

// Track returns a copy of what has been recorded so far.
func (r *Recorder) Track() Track {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.track
	t.Points = append([]Point(nil), r.track.Points...)
	return t
}

func (t Track) Save(w io.Writer) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(t); err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}

	return nil
}

func Load(r io.Reader) (*Track, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var t Track
	if err := msgpack.NewDecoder(zr).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode track: %w", err)
	}
	return &t, nil
}

// WriteFile saves the recorded track to path through a temporary file.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".track-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := r.Track().Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func ReadFile(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
