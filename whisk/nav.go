package whisk

import "math/bits"

// Modifier is the bitset of modifier keys held during a frame step.
// Each held modifier multiplies the step size by 10.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

// StepMultiplier maps the modifier bitset to the effective step size:
// 1, 10, 100 or 1000 depending on how many of the three bits are set.
func (m Modifier) StepMultiplier() int {
	mult := 1
	for i := 0; i < bits.OnesCount8(uint8(m&(ModShift|ModCtrl|ModAlt))); i++ {
		mult *= 10
	}
	return mult
}

const (
	radiusDelta = 1.0
	radiusMin   = 1.0
)

// Session is the interactive cursor state: where the operator is in the
// movie and which whisker they are editing. It is a value passed to and
// returned from each command handler, never ambient state, so every
// navigation command is a pure function and testable in isolation.
type Session struct {
	Frame        int
	TrajectoryID int
	Radius       float64
	Transpose    bool
	FaceHint     FaceHint
	ShowCursor   bool
	AutoMode     bool
}

// Navigator computes the session state resulting from a navigation
// command. It only reads the trajectory store; callers apply the
// returned session atomically.
type Navigator struct {
	store *TrajectoryStore
}

func NewNavigator(store *TrajectoryStore) *Navigator {
	return &Navigator{store: store}
}

// Step moves the current frame by 10^(held modifiers) in dir, clamped to
// the movie bounds.
func (nav *Navigator) Step(s Session, dir Direction, mods Modifier) Session {
	s.Frame = clampInt(s.Frame+int(dir)*mods.StepMultiplier(), 0, nav.lastFrame())
	return s
}

// JumpStart moves to frame 0.
func (nav *Navigator) JumpStart(s Session) Session {
	s.Frame = 0
	return s
}

// JumpEnd moves to the last frame.
func (nav *Navigator) JumpEnd(s Session) Session {
	s.Frame = nav.lastFrame()
	return s
}

// NextID selects the next trajectory id in the store's sorted id set.
// Incrementing past the last known id is a no-op (clamp, not wrap).
func (nav *Navigator) NextID(s Session) Session {
	ids := nav.store.IDs()
	for _, id := range ids {
		if id > s.TrajectoryID {
			s.TrajectoryID = id
			break
		}
	}
	return s
}

// PrevID selects the previous trajectory id, clamping at the lowest.
func (nav *Navigator) PrevID(s Session) Session {
	ids := nav.store.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		if ids[i] < s.TrajectoryID {
			s.TrajectoryID = ids[i]
			break
		}
	}
	return s
}

// SeekGap moves the current frame to the next gap in dir. With
// anyTrajectory it searches across every known trajectory, otherwise only
// the selected one. If no gap exists the session is returned unchanged
// and found is false.
func (nav *Navigator) SeekGap(s Session, dir Direction, anyTrajectory bool) (out Session, found bool, err error) {
	var frame int
	if anyTrajectory {
		frame, found, err = nav.store.NextGapAnyTrajectory(s.Frame, dir)
	} else {
		frame, found, err = nav.store.NextGap(s.TrajectoryID, s.Frame, dir)
	}
	if err != nil || !found {
		return s, false, err
	}
	s.Frame = frame
	return s, true, nil
}

// GrowRadius widens the cursor search radius by a fixed delta.
func (nav *Navigator) GrowRadius(s Session) Session {
	s.Radius += radiusDelta
	return s
}

// ShrinkRadius narrows the cursor search radius, never below the minimum.
func (nav *Navigator) ShrinkRadius(s Session) Session {
	s.Radius = maxFloat64(s.Radius-radiusDelta, radiusMin)
	return s
}

// CycleFaceHint advances the face hint through its fixed cycle.
func (nav *Navigator) CycleFaceHint(s Session) Session {
	s.FaceHint = s.FaceHint.Cycle()
	return s
}

func (nav *Navigator) lastFrame() int {
	return maxInt(nav.store.FrameCount()-1, 0)
}
