package whisk

import "sort"

// Measurement is the derived scalar record for one whisker in one frame.
// Follicle-relative values (root angle, follicle x/y) are only oriented
// correctly when the face hint is known; KnownOrientation marks that.
type Measurement struct {
	Frame        int
	TrajectoryID int

	Length        float64
	RootAngleDeg  float64
	MeanCurvature float64
	FollicleX     float64
	FollicleY     float64

	KnownOrientation bool

	// Frame-to-frame deltas of the scalars above, valid only when the
	// trajectory has a segment in the immediately preceding frame.
	Velocity      MeasurementVelocity
	VelocityValid bool
}

// MeasurementVelocity holds per-measure change rates between consecutive
// frames of the same trajectory.
type MeasurementVelocity struct {
	Length        float64
	RootAngleDeg  float64
	MeanCurvature float64
	FollicleX     float64
	FollicleY     float64
}

// MeasureSegment derives the scalar measures of one segment.
func MeasureSegment(seg *Segment, hint FaceHint) Measurement {
	f := seg.Follicle(hint)
	return Measurement{
		Length:           seg.Length(),
		RootAngleDeg:     seg.RootAngleDeg(hint),
		MeanCurvature:    seg.MeanCurvature(),
		FollicleX:        f.X,
		FollicleY:        f.Y,
		KnownOrientation: hint.Known(),
	}
}

// BuildMeasurements derives measurements for every assignment in the
// store, sorted by (trajectory id, frame) and with velocities filled in
// for consecutive-frame runs.
func BuildMeasurements(store *TrajectoryStore, hint FaceHint) []Measurement {
	var out []Measurement
	for _, id := range store.IDs() {
		frames := make([]int, 0)
		for f := 0; f < store.FrameCount(); f++ {
			if _, ok := store.Segment(id, f); ok {
				frames = append(frames, f)
			}
		}
		sort.Ints(frames)
		for _, f := range frames {
			seg, _ := store.Segment(id, f)
			m := MeasureSegment(seg, hint)
			m.Frame = f
			m.TrajectoryID = id
			out = append(out, m)
		}
	}
	UpdateVelocities(out)
	return out
}

// UpdateVelocities fills the Velocity field of each measurement from its
// predecessor in the same trajectory. A velocity is valid only across
// consecutive frames; a measurement following a gap keeps VelocityValid
// false. The slice must be sorted by (trajectory id, frame), as
// BuildMeasurements produces it.
func UpdateVelocities(ms []Measurement) {
	for i := 1; i < len(ms); i++ {
		prev := &ms[i-1]
		cur := &ms[i]
		if cur.TrajectoryID != prev.TrajectoryID || cur.Frame != prev.Frame+1 {
			continue
		}
		cur.Velocity = MeasurementVelocity{
			Length:        cur.Length - prev.Length,
			RootAngleDeg:  cur.RootAngleDeg - prev.RootAngleDeg,
			MeanCurvature: cur.MeanCurvature - prev.MeanCurvature,
			FollicleX:     cur.FollicleX - prev.FollicleX,
			FollicleY:     cur.FollicleY - prev.FollicleY,
		}
		cur.VelocityValid = true
	}
}
