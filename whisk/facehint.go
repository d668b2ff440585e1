package whisk

// FaceHint tells which border of the frame the animal's face is on.
// It is session-wide, not per-frame, and resolves which end of a traced
// backbone is the follicle when measurements are derived.
type FaceHint uint8

const (
	FaceUnset FaceHint = iota
	FaceLeft
	FaceRight
	FaceTop
	FaceBottom
)

// Cycle advances the hint through its fixed order
// unset -> left -> right -> top -> bottom -> unset.
func (h FaceHint) Cycle() FaceHint {
	if h >= FaceBottom {
		return FaceUnset
	}
	return h + 1
}

// Known reports whether the hint names an actual side.
func (h FaceHint) Known() bool {
	return h != FaceUnset && h <= FaceBottom
}

func (h FaceHint) String() string {
	switch h {
	case FaceLeft:
		return "left"
	case FaceRight:
		return "right"
	case FaceTop:
		return "top"
	case FaceBottom:
		return "bottom"
	default:
		return "unset"
	}
}

// ParseFaceHint maps a stored string back to a FaceHint. Unrecognized
// values map to FaceUnset.
func ParseFaceHint(s string) FaceHint {
	switch s {
	case "left":
		return FaceLeft
	case "right":
		return FaceRight
	case "top":
		return FaceTop
	case "bottom":
		return FaceBottom
	default:
		return FaceUnset
	}
}
