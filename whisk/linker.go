package whisk

import (
	"context"
	"math"
	"sort"

	kalman_filter "github.com/LdDl/kalman-filter"
	hungarian "github.com/arthurkushman/go-hungarian"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// MatchingAlgorithm selects how candidate segments are matched to
// trajectories during auto mode.
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy min-cost algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

// trajectoryTrack is the linker's per-trajectory motion state: a 2D
// Kalman filter over the follicle position plus the feature vector of
// the trajectory's most recent segment.
type trajectoryTrack struct {
	filter    *kalman_filter.Kalman2D
	predicted Point
	feature   []float64
}

func newTrajectoryTrack(follicle Point, feature []float64) *trajectoryTrack {
	/* Kalman filter props */
	dt := 1.0
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	kf := kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy, kalman_filter.WithState2D(follicle.X, follicle.Y))
	return &trajectoryTrack{
		filter:    kf,
		predicted: follicle,
		feature:   feature,
	}
}

func (t *trajectoryTrack) predict() {
	t.filter.Predict()
	stateX, stateY := t.filter.GetState()
	t.predicted.X = stateX
	t.predicted.Y = stateY
}

func (t *trajectoryTrack) update(seg *Segment, hint FaceHint) error {
	f := seg.Follicle(hint)
	if err := t.filter.Update(f.X, f.Y); err != nil {
		return errors.Wrap(err, "can't update trajectory motion filter")
	}
	t.feature = seg.featureVector(hint)
	return nil
}

// AutoLinker assigns freshly traced segments to existing trajectories
// during auto mode. Each live trajectory carries a Kalman-predicted
// follicle position; candidates within the gate are matched to
// trajectories by minimizing feature distance, optimally (Hungarian) or
// greedily.
type AutoLinker struct {
	store *TrajectoryStore
	hint  FaceHint
	// Max distance (px) between a predicted follicle and a candidate's
	// follicle for the pair to be considered at all.
	gate      float64
	algorithm MatchingAlgorithm
	tracks    map[int]*trajectoryTrack
}

// NewAutoLinker creates a linker over the store with default gating.
func NewAutoLinker(store *TrajectoryStore, hint FaceHint) *AutoLinker {
	return NewAutoLinkerWithParams(store, hint, 40.0, MatchingAlgorithmHungarian)
}

// NewAutoLinkerWithParams creates a linker with an explicit follicle gate
// (pixels) and matching algorithm.
func NewAutoLinkerWithParams(store *TrajectoryStore, hint FaceHint, gate float64, algorithm MatchingAlgorithm) *AutoLinker {
	return &AutoLinker{
		store:     store,
		hint:      hint,
		gate:      gate,
		algorithm: algorithm,
		tracks:    make(map[int]*trajectoryTrack),
	}
}

// Prime (re)builds the motion state from the segments present in frame.
// Call it once before the first LinkFrame of an auto-mode run.
func (al *AutoLinker) Prime(frame int) error {
	if err := al.store.checkFrame(frame); err != nil {
		return err
	}
	al.tracks = make(map[int]*trajectoryTrack)
	for _, id := range al.store.IDs() {
		seg, ok := al.store.Segment(id, frame)
		if !ok {
			continue
		}
		al.tracks[id] = newTrajectoryTrack(seg.Follicle(al.hint), seg.featureVector(al.hint))
	}
	if len(al.tracks) == 0 {
		return errors.Errorf("no segments in frame %d to prime the linker from", frame)
	}
	return nil
}

// LinkFrame matches candidate segments to the primed trajectories and
// records the winning assignments in the store. Unmatched trajectories
// keep a gap in this frame; unmatched candidates are dropped. Returns
// the assignments made as candidate index -> trajectory id.
func (al *AutoLinker) LinkFrame(frame int, candidates []*Segment) (map[int]int, error) {
	if err := al.store.checkFrame(frame); err != nil {
		return nil, err
	}
	if len(al.tracks) == 0 {
		return nil, errors.New("linker has no primed trajectories")
	}

	ids := make([]int, 0, len(al.tracks))
	for id := range al.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		al.tracks[id].predict()
	}

	var matches [][2]int // {track index in ids, candidate index}
	switch al.algorithm {
	case MatchingAlgorithmGreedy:
		matches = al.matchGreedy(ids, candidates)
	default:
		matches = al.matchHungarian(ids, candidates)
	}

	assigned := make(map[int]int, len(matches))
	for _, m := range matches {
		id := ids[m[0]]
		cand := candidates[m[1]]
		if err := al.store.Assign(id, frame, cand); err != nil {
			return nil, errors.Wrapf(err, "can't assign candidate %d to trajectory %d", m[1], id)
		}
		if err := al.tracks[id].update(cand, al.hint); err != nil {
			return nil, err
		}
		assigned[m[1]] = id
	}
	return assigned, nil
}

// cost is the matching cost between a track and a candidate: follicle
// distance relative to the gate plus a normalized feature-vector
// distance. Pairs outside the gate cost +Inf.
func (al *AutoLinker) cost(t *trajectoryTrack, cand *Segment) float64 {
	f := cand.Follicle(al.hint)
	d := euclideanDistance(t.predicted, f)
	if d > al.gate {
		return math.Inf(1)
	}
	fv := cand.featureVector(al.hint)
	diff := make([]float64, len(fv))
	floats.SubTo(diff, fv, t.feature)
	for i := range diff {
		diff[i] /= featureScales[i]
	}
	return d/al.gate + floats.Norm(diff, 2)
}

// featureScales normalizes the feature dimensions (length px, root angle
// deg, curvature 1/px, follicle x/y px) to comparable magnitudes.
var featureScales = []float64{100.0, 45.0, 0.05, 100.0, 100.0}

// matchHungarian solves the assignment optimally on a padded similarity
// matrix. hungarian.SolveMax maximizes, so costs are flipped into
// similarities with gated pairs pinned at zero.
func (al *AutoLinker) matchHungarian(ids []int, candidates []*Segment) [][2]int {
	n := len(ids)
	m := len(candidates)
	if n == 0 || m == 0 {
		return nil
	}
	size := maxInt(n, m)
	matrix := make([][]float64, size)
	for i := range matrix {
		matrix[i] = make([]float64, size)
	}
	for i, id := range ids {
		for j, cand := range candidates {
			c := al.cost(al.tracks[id], cand)
			if !math.IsInf(c, 1) {
				matrix[i][j] = 1.0 / (1.0 + c)
			}
		}
	}
	assignments := hungarian.SolveMax(matrix)
	matches := make([][2]int, 0, len(assignments))
	for trackIdx, rowMap := range assignments {
		for candIdx := range rowMap {
			if trackIdx >= n || candIdx >= m {
				break // padded row/column
			}
			if matrix[trackIdx][candIdx] > 0 {
				matches = append(matches, [2]int{trackIdx, candIdx})
			}
			break
		}
	}
	return matches
}

// matchGreedy pops track/candidate pairs off a min-cost heap, skipping
// anything already taken.
func (al *AutoLinker) matchGreedy(ids []int, candidates []*Segment) [][2]int {
	pq := make(linkHeap, 0, len(ids)*len(candidates))
	for i, id := range ids {
		for j, cand := range candidates {
			c := al.cost(al.tracks[id], cand)
			if math.IsInf(c, 1) {
				continue
			}
			pq.Push(&linkCandidate{trackIdx: i, candIdx: j, cost: c})
		}
	}
	usedTracks := make(map[int]struct{})
	usedCands := make(map[int]struct{})
	var matches [][2]int
	for pq.Len() > 0 {
		lc := pq.Pop()
		if _, ok := usedTracks[lc.trackIdx]; ok {
			continue
		}
		if _, ok := usedCands[lc.candIdx]; ok {
			continue
		}
		usedTracks[lc.trackIdx] = struct{}{}
		usedCands[lc.candIdx] = struct{}{}
		matches = append(matches, [2]int{lc.trackIdx, lc.candIdx})
	}
	return matches
}

// RunAuto is auto mode: starting from the session's frame, repeatedly
// advance one frame, trace at the Kalman-predicted seed of the selected
// trajectory, and link the result. The loop checks ctx between frames,
// never mid-trace, so toggling auto off takes effect before the next
// frame's trace starts. Returns the session positioned at the last frame
// that was successfully linked.
func (al *AutoLinker) RunAuto(ctx context.Context, src FrameSource, tracer *Tracer, s Session) (Session, error) {
	if err := al.Prime(s.Frame); err != nil {
		return s, err
	}
	last := src.FrameCount() - 1
	for s.Frame < last {
		select {
		case <-ctx.Done():
			return s, nil
		default:
		}
		next := s.Frame + 1
		frame, err := src.Frame(next)
		if err != nil {
			return s, errors.Wrapf(err, "can't fetch frame %d", next)
		}
		seed, ok := al.predictedSeed(s.TrajectoryID)
		if !ok {
			return s, errors.Errorf("trajectory %d has no motion state to seed from", s.TrajectoryID)
		}
		cand, err := tracer.Trace(frame, seed, s.Radius)
		if err != nil {
			// Losing the ridge ends the run; the operator reseeds.
			return s, err
		}
		if _, err := al.LinkFrame(next, []*Segment{cand}); err != nil {
			return s, err
		}
		s.Frame = next
	}
	return s, nil
}

func (al *AutoLinker) predictedSeed(trajectoryID int) (Point, bool) {
	t, ok := al.tracks[trajectoryID]
	if !ok {
		return Point{}, false
	}
	return t.predicted, true
}
