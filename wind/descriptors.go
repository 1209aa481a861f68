package wind

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ParseName reads the valid time of a file named
// YYYYMMDDHH.fHHH.<ext>: the run date plus the forecast hour.
func ParseName(name string) (time.Time, time.Time, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 2 || len(parts[1]) < 2 || parts[1][0] != 'f' {
		return time.Time{}, time.Time{}, fmt.Errorf("'%s' is not a forecast file name", name)
	}

	run, err := time.Parse("2006010215", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing run date of '%s': %w", name, err)
	}
	h, err := strconv.Atoi(parts[1][1:])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("getting hour from file '%s': %w", name, err)
	}

	return run, run.Add(time.Hour * time.Duration(h)), nil
}

// ScanDir lists the forecast files of dir. When several runs cover the
// same instant, the most recent run wins.
func ScanDir(dir string) ([]Descriptor, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.WithError(err).Errorf("Error walking file '%s'", path)
		} else if info.Mode().IsRegular() && !strings.HasSuffix(info.Name(), ".tmp") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)

	type found struct {
		run  time.Time
		desc Descriptor
	}
	byTime := make(map[int64]found)
	for _, f := range files {
		run, t, err := ParseName(filepath.Base(f))
		if err != nil {
			log.WithError(err).Debugf("Skipping '%s'", f)
			continue
		}
		if prev, ok := byTime[t.UnixNano()]; ok && prev.run.After(run) {
			continue
		}
		byTime[t.UnixNano()] = found{run: run, desc: Descriptor{Time: t, SourceURL: f}}
	}

	descs := make([]Descriptor, 0, len(byTime))
	for _, f := range byTime {
		descs = append(descs, f.desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].Time.Before(descs[j].Time)
	})

	return descs, nil
}

type manifestEntry struct {
	Time      string `yaml:"time"`
	SourceURL string `yaml:"sourceUrl"`
}

// LoadManifest reads a YAML or JSON list of {time, sourceUrl} entries.
// Times are RFC 3339.
func LoadManifest(data []byte) ([]Descriptor, error) {
	var entries []manifestEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("reading wind manifest: %w", err)
	}

	descs := make([]Descriptor, 0, len(entries))
	for i, e := range entries {
		t, err := time.Parse(time.RFC3339, e.Time)
		if err != nil {
			return nil, fmt.Errorf("wind manifest entry %d: %w", i, err)
		}
		if e.SourceURL == "" {
			return nil, fmt.Errorf("wind manifest entry %d has no sourceUrl", i)
		}
		descs = append(descs, Descriptor{Time: t, SourceURL: e.SourceURL})
	}
	sort.SliceStable(descs, func(i, j int) bool {
		return descs[i].Time.Before(descs[j].Time)
	})

	return descs, nil
}

func LoadManifestFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadManifest(data)
}
