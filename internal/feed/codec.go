package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// snapshotFields is the column count of a snapshot row: the feed id followed
// by one baseline value per hour of the day.
const snapshotFields = 25

// Load reads a registry snapshot. Each row is `id,hour0,...,hour23` with no
// header. hour selects which stored baseline seeds the feed's moving average;
// callers pass the current UTC hour at startup. Any malformed row fails the
// whole load so the caller can fall back to an empty registry.
func Load(r io.Reader, hour int) (Registry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = snapshotFields

	reg := make(Registry)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading snapshot row: %w", err)
		}

		id, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("feed id %q: %w", rec[0], err)
		}

		var hourly [24]float64
		for i := range hourly {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("feed %d hour %d: %w", id, i, err)
			}
			hourly[i] = v
		}

		reg[id] = newStateWithHourly(hourly[hour], hourly)
	}

	return reg, nil
}

// LoadFile reads a registry snapshot from path. See Load.
func LoadFile(path string, hour int) (Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reg, err := Load(f, hour)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Save writes the registry as one `id,hour0,...,hour23` row per feed, sorted
// by feed id. Hourly baselines are truncated to whole numbers on the way out.
func Save(w io.Writer, reg Registry) error {
	ids := make([]int, 0, len(reg))
	for id := range reg {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	cw := csv.NewWriter(w)
	rec := make([]string, snapshotFields)
	for _, id := range ids {
		rec[0] = strconv.Itoa(id)
		for i, v := range reg[id].hourly {
			rec[i+1] = strconv.Itoa(int(v))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing feed %d: %w", id, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveFile writes the snapshot to a temporary file in the same directory and
// renames it over path, so an interrupted write never truncates the previous
// snapshot.
func SaveFile(path string, reg Registry) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if err := Save(f, reg); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}
