package polar

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Boat is the multi-sail polar file format: one speed grid per sail,
// indexed [twa][tws]. The resulting table keeps the best sail for every
// cell.
type Boat struct {
	Label            string    `json:"label"`
	GlobalSpeedRatio float64   `json:"globalSpeedRatio"`
	Tws              []float64 `json:"tws"`
	Twa              []float64 `json:"twa"`
	Sail             []Sail    `json:"sail"`
}

type Sail struct {
	Id    int         `json:"id"`
	Name  string      `json:"name"`
	Speed [][]float64 `json:"speed"`
}

func (boat Boat) Table() (*Table, error) {
	ratio := boat.GlobalSpeedRatio
	if ratio == 0 {
		ratio = 1
	}
	t := &Table{Label: boat.Label, TWS: boat.Tws, TWA: boat.Twa, Speed: make([][]float64, len(boat.Tws))}
	for i := range t.Speed {
		t.Speed[i] = make([]float64, len(boat.Twa))
	}
	for _, sail := range boat.Sail {
		if len(sail.Speed) != len(boat.Twa) {
			return nil, fmt.Errorf("sail %s has %d twa rows for %d twa keys", sail.Name, len(sail.Speed), len(boat.Twa))
		}
		for j, row := range sail.Speed {
			if len(row) != len(boat.Tws) {
				return nil, fmt.Errorf("sail %s has %d tws values at twa %v", sail.Name, len(row), boat.Twa[j])
			}
			for i, s := range row {
				t.Speed[i][j] = math.Max(t.Speed[i][j], s*ratio)
			}
		}
	}
	return t, nil
}

// ParseJSON reads either a plain {tws, twa, speed} table or a multi-sail
// boat file.
func ParseJSON(data []byte) (*Table, error) {
	var shape struct {
		Sail json.RawMessage `json:"sail"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, err
	}

	var t *Table
	if shape.Sail != nil {
		var boat Boat
		if err := json.Unmarshal(data, &boat); err != nil {
			return nil, err
		}
		var err error
		if t, err = boat.Table(); err != nil {
			return nil, err
		}
	} else {
		t = &Table{}
		if err := json.Unmarshal(data, t); err != nil {
			return nil, err
		}
	}

	return t, t.Validate()
}

// ParsePol reads the semicolon (or tab) separated layout
// "TWA\TWS;6;8;...": a header of TWS keys, then one row per TWA.
func ParsePol(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(data)
	sep := ';'
	if !strings.Contains(strings.SplitN(text, "\n", 2)[0], ";") {
		sep = '\t'
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("polar needs a header and at least one row")
	}

	t := &Table{}
	for _, f := range records[0][1:] {
		tws, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("tws header: %w", err)
		}
		t.TWS = append(t.TWS, tws)
	}
	t.Speed = make([][]float64, len(t.TWS))

	for n, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != len(t.TWS)+1 {
			return nil, fmt.Errorf("row %d has %d values for %d tws keys", n+1, len(rec)-1, len(t.TWS))
		}
		twa, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d twa: %w", n+1, err)
		}
		t.TWA = append(t.TWA, twa)
		for i, f := range rec[1:] {
			s, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n+1, err)
			}
			t.Speed[i] = append(t.Speed[i], s)
		}
	}

	return t, t.Validate()
}

// Load reads a polar file, choosing the format from its extension.
func Load(path string) (*Table, error) {
	log.Debugf("Load polar %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var t *Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, rerr := io.ReadAll(f)
		if rerr != nil {
			return nil, rerr
		}
		t, err = ParseJSON(data)
	default:
		t, err = ParsePol(f)
	}
	if err != nil {
		return nil, fmt.Errorf("loading polar %s: %w", path, err)
	}
	if t.Label == "" {
		t.Label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}
