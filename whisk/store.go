package whisk

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrFrameRange is returned by store operations given a frame index
// outside [0, FrameCount).
var ErrFrameRange = errors.New("frame index out of range")

// Direction selects the scan direction for gap searches.
type Direction int8

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// Record is the logical persisted form of one whisker in one frame.
type Record struct {
	Frame        int
	TrajectoryID int
	Points       []Point
}

// TrajectoryStore owns every trajectory of the movie: the sparse mapping
// from (trajectory id, frame) to traced segments. Absence of a frame key
// is a gap, not an error.
//
// Two invariants are maintained across all mutations:
//   - a trajectory holds at most one segment per frame;
//   - within a frame, a segment belongs to at most one trajectory.
//
// The store is mutated by the single interactive thread; the mutex only
// exists so a background autosave can snapshot without observing a store
// mid-mutation.
type TrajectoryStore struct {
	mu         sync.RWMutex
	frameCount int
	// trajectory id -> frame -> segment
	trajectories map[int]map[int]*Segment
	// frame -> segment id -> owning trajectory id
	owners map[int]map[uuid.UUID]int
}

// NewTrajectoryStore creates an empty store for a movie of frameCount frames.
func NewTrajectoryStore(frameCount int) *TrajectoryStore {
	return &TrajectoryStore{
		frameCount:   frameCount,
		trajectories: make(map[int]map[int]*Segment),
		owners:       make(map[int]map[uuid.UUID]int),
	}
}

// FrameCount returns the movie length the store was built for.
func (ts *TrajectoryStore) FrameCount() int {
	return ts.frameCount
}

func (ts *TrajectoryStore) checkFrame(frame int) error {
	if frame < 0 || frame >= ts.frameCount {
		return errors.Wrapf(ErrFrameRange, "frame %d not in [0, %d)", frame, ts.frameCount)
	}
	return nil
}

// Assign maps (trajectoryID, frame) to seg, creating the trajectory if it
// is new. If seg was owned by another trajectory in that frame it is
// removed from the old owner first, so the one-owner-per-frame invariant
// always holds.
func (ts *TrajectoryStore) Assign(trajectoryID, frame int, seg *Segment) error {
	if err := ts.checkFrame(frame); err != nil {
		return err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	frameOwners := ts.owners[frame]
	if frameOwners == nil {
		frameOwners = make(map[uuid.UUID]int)
		ts.owners[frame] = frameOwners
	}
	if prev, owned := frameOwners[seg.ID()]; owned && prev != trajectoryID {
		ts.removeLocked(prev, frame)
	}

	frames := ts.trajectories[trajectoryID]
	if frames == nil {
		frames = make(map[int]*Segment)
		ts.trajectories[trajectoryID] = frames
	}
	if old, ok := frames[frame]; ok {
		// Replacing the trajectory's segment in this frame releases the
		// old segment's ownership entry.
		delete(frameOwners, old.ID())
	}
	frames[frame] = seg
	frameOwners[seg.ID()] = trajectoryID
	return nil
}

// Clear removes the (trajectoryID, frame) mapping if present; clearing a
// gap is a no-op, not an error. A trajectory left with zero segments is
// dropped from the store.
func (ts *TrajectoryStore) Clear(trajectoryID, frame int) error {
	if err := ts.checkFrame(frame); err != nil {
		return err
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.removeLocked(trajectoryID, frame)
	return nil
}

// DeleteInFrame is the explicit delete command. Same semantics as Clear:
// only the named trajectory loses its segment in that frame.
func (ts *TrajectoryStore) DeleteInFrame(trajectoryID, frame int) error {
	return ts.Clear(trajectoryID, frame)
}

func (ts *TrajectoryStore) removeLocked(trajectoryID, frame int) {
	frames, ok := ts.trajectories[trajectoryID]
	if !ok {
		return
	}
	seg, ok := frames[frame]
	if !ok {
		return
	}
	delete(frames, frame)
	if len(frames) == 0 {
		delete(ts.trajectories, trajectoryID)
	}
	if frameOwners, ok := ts.owners[frame]; ok {
		if frameOwners[seg.ID()] == trajectoryID {
			delete(frameOwners, seg.ID())
		}
		if len(frameOwners) == 0 {
			delete(ts.owners, frame)
		}
	}
}

// Segment returns the segment assigned to (trajectoryID, frame), if any.
func (ts *TrajectoryStore) Segment(trajectoryID, frame int) (*Segment, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	frames, ok := ts.trajectories[trajectoryID]
	if !ok {
		return nil, false
	}
	seg, ok := frames[frame]
	return seg, ok
}

// Owner returns the trajectory owning seg in frame, if any.
func (ts *TrajectoryStore) Owner(frame int, segID uuid.UUID) (int, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	frameOwners, ok := ts.owners[frame]
	if !ok {
		return 0, false
	}
	id, ok := frameOwners[segID]
	return id, ok
}

// FindNearestSegment searches the segments already present in frame,
// across all trajectories, for the one whose backbone passes within
// radius of p. Ties break by minimum distance, then lowest trajectory id.
// The owning trajectory id is returned alongside; a nil segment means no
// segment qualified.
func (ts *TrajectoryStore) FindNearestSegment(frame int, p Point, radius float64) (*Segment, int, error) {
	if err := ts.checkFrame(frame); err != nil {
		return nil, 0, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var best *Segment
	bestID := 0
	bestDist := radius
	for trajectoryID, frames := range ts.trajectories {
		seg, ok := frames[frame]
		if !ok {
			continue
		}
		d := seg.DistanceTo(p)
		if d > bestDist {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && trajectoryID < bestID) {
			best = seg
			bestID = trajectoryID
			bestDist = d
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestID, nil
}

// NextGap scans frames in the given direction, starting at fromFrame
// inclusive, for the first frame where trajectoryID has no segment.
// Returns (frame, true) on a hit, (0, false) if there is no gap within
// the movie bounds.
func (ts *TrajectoryStore) NextGap(trajectoryID, fromFrame int, dir Direction) (int, bool, error) {
	if err := ts.checkFrame(fromFrame); err != nil {
		return 0, false, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	frames := ts.trajectories[trajectoryID]
	for f := fromFrame; f >= 0 && f < ts.frameCount; f += int(dir) {
		if _, ok := frames[f]; !ok {
			return f, true, nil
		}
	}
	return 0, false, nil
}

// NextGapAnyTrajectory scans like NextGap but across the union of all
// known trajectory ids: a frame qualifies if any existing trajectory
// lacks a segment there. With no trajectories in the store there is
// nothing to have a gap, so no frame qualifies.
func (ts *TrajectoryStore) NextGapAnyTrajectory(fromFrame int, dir Direction) (int, bool, error) {
	if err := ts.checkFrame(fromFrame); err != nil {
		return 0, false, err
	}
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if len(ts.trajectories) == 0 {
		return 0, false, nil
	}
	for f := fromFrame; f >= 0 && f < ts.frameCount; f += int(dir) {
		for _, frames := range ts.trajectories {
			if _, ok := frames[f]; !ok {
				return f, true, nil
			}
		}
	}
	return 0, false, nil
}

// IDs returns the known trajectory ids in ascending order.
func (ts *TrajectoryStore) IDs() []int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	ids := make([]int, 0, len(ts.trajectories))
	for id := range ts.trajectories {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of live trajectories.
func (ts *TrajectoryStore) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.trajectories)
}

// SegmentsInFrame returns the (trajectory id, segment) pairs present in
// frame, id-sorted.
func (ts *TrajectoryStore) SegmentsInFrame(frame int) []Record {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.recordsForFrameLocked(frame)
}

func (ts *TrajectoryStore) recordsForFrameLocked(frame int) []Record {
	var out []Record
	for trajectoryID, frames := range ts.trajectories {
		if seg, ok := frames[frame]; ok {
			out = append(out, Record{
				Frame:        frame,
				TrajectoryID: trajectoryID,
				Points:       seg.Points(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrajectoryID < out[j].TrajectoryID })
	return out
}

// Records snapshots the whole store in export order: frame-major,
// id-sorted within a frame. Safe to call from an autosave goroutine.
func (ts *TrajectoryStore) Records() []Record {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	frameSet := make(map[int]struct{})
	for _, frames := range ts.trajectories {
		for f := range frames {
			frameSet[f] = struct{}{}
		}
	}
	frameList := make([]int, 0, len(frameSet))
	for f := range frameSet {
		frameList = append(frameList, f)
	}
	sort.Ints(frameList)

	var out []Record
	for _, f := range frameList {
		out = append(out, ts.recordsForFrameLocked(f)...)
	}
	return out
}
