// Package whiskio persists whisker trajectory data: plain-text whisker
// and measurement files for interchange, and a SQLite session store for
// autosave. The logical record everywhere is
// {frame, trajectory id, backbone points}.
package whiskio

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/elyall/whisk-1/whisk"
)

const whiskerHeaderFrame = "frame"

// SaveWhiskers writes records to path. Records come out frame-major and
// id-sorted within a frame, which is exactly the order
// TrajectoryStore.Records produces, so save(load(x)) reproduces an
// equivalent record set.
func SaveWhiskers(path string, records []whisk.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create whisker file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	if err := writer.Write([]string{whiskerHeaderFrame, "traj", "points"}); err != nil {
		return fmt.Errorf("write whisker header: %w", err)
	}
	for _, rec := range records {
		points := make([]string, len(rec.Points))
		for i, pt := range rec.Points {
			points[i] = fmt.Sprintf("%f,%f", pt.X, pt.Y)
		}
		row := []string{
			strconv.Itoa(rec.Frame),
			strconv.Itoa(rec.TrajectoryID),
			strings.Join(points, "|"),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write whisker record (frame %d, traj %d): %w", rec.Frame, rec.TrajectoryID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadWhiskers reads a whisker file into a fresh TrajectoryStore sized
// for frameCount frames. A malformed row or an out-of-range frame fails
// the whole load; callers typically fall back to an empty store and warn
// the operator.
func LoadWhiskers(path string, frameCount int) (*whisk.TrajectoryStore, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open whisker file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read whisker file: %w", err)
	}

	store := whisk.NewTrajectoryStore(frameCount)
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == whiskerHeaderFrame {
			continue
		}
		rec, err := parseWhiskerRow(row)
		if err != nil {
			return nil, fmt.Errorf("whisker file row %d: %w", i+1, err)
		}
		seg, err := whisk.NewSegment(rec.Points)
		if err != nil {
			return nil, fmt.Errorf("whisker file row %d: %w", i+1, err)
		}
		if err := store.Assign(rec.TrajectoryID, rec.Frame, seg); err != nil {
			return nil, fmt.Errorf("whisker file row %d: %w", i+1, err)
		}
	}
	return store, nil
}

func parseWhiskerRow(row []string) (whisk.Record, error) {
	if len(row) != 3 {
		return whisk.Record{}, fmt.Errorf("expected 3 fields, got %d", len(row))
	}
	frame, err := strconv.Atoi(row[0])
	if err != nil {
		return whisk.Record{}, fmt.Errorf("bad frame %q: %w", row[0], err)
	}
	traj, err := strconv.Atoi(row[1])
	if err != nil {
		return whisk.Record{}, fmt.Errorf("bad trajectory id %q: %w", row[1], err)
	}
	parts := strings.Split(row[2], "|")
	points := make([]whisk.Point, 0, len(parts))
	for _, part := range parts {
		xy := strings.SplitN(part, ",", 2)
		if len(xy) != 2 {
			return whisk.Record{}, fmt.Errorf("bad point %q", part)
		}
		x, err := strconv.ParseFloat(xy[0], 64)
		if err != nil {
			return whisk.Record{}, fmt.Errorf("bad x %q: %w", xy[0], err)
		}
		y, err := strconv.ParseFloat(xy[1], 64)
		if err != nil {
			return whisk.Record{}, fmt.Errorf("bad y %q: %w", xy[1], err)
		}
		points = append(points, whisk.Point{X: x, Y: y})
	}
	return whisk.Record{Frame: frame, TrajectoryID: traj, Points: points}, nil
}
