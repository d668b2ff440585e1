package whisk

import (
	"image"

	"github.com/pkg/errors"
)

// FrameSource supplies 8-bit grayscale pixel data for a movie by frame
// index. Video decoding lives behind this interface; the tracer and the
// renderer only ever see what a FrameSource hands them.
type FrameSource interface {
	Frame(index int) (*image.Gray, error)
	FrameCount() int
}

// SliceSource is an in-memory FrameSource over pre-decoded frames.
type SliceSource struct {
	Frames []*image.Gray
}

func (s *SliceSource) Frame(index int) (*image.Gray, error) {
	if index < 0 || index >= len(s.Frames) {
		return nil, errors.Wrapf(ErrFrameRange, "frame %d not in [0, %d)", index, len(s.Frames))
	}
	return s.Frames[index], nil
}

func (s *SliceSource) FrameCount() int {
	return len(s.Frames)
}

// Transposed wraps a source so every frame is transposed (x and y
// swapped) before anyone downstream sees it. Movies shot with the camera
// rotated are handled here once instead of in the tracer and renderer.
func Transposed(src FrameSource) FrameSource {
	return &transposedSource{src: src}
}

type transposedSource struct {
	src FrameSource
}

func (t *transposedSource) Frame(index int) (*image.Gray, error) {
	frame, err := t.src.Frame(index)
	if err != nil {
		return nil, err
	}
	b := frame.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetGray(y-b.Min.Y, x-b.Min.X, frame.GrayAt(x, y))
		}
	}
	return out, nil
}

func (t *transposedSource) FrameCount() int {
	return t.src.FrameCount()
}

// BiasCorrected wraps a source so the intensity bias between odd and even
// scanlines (an interlaced-capture artifact) is removed: odd rows are
// shifted by the difference of the even-row and odd-row means.
func BiasCorrected(src FrameSource) FrameSource {
	return &biasCorrectedSource{src: src}
}

type biasCorrectedSource struct {
	src FrameSource
}

func (b *biasCorrectedSource) Frame(index int) (*image.Gray, error) {
	frame, err := b.src.Frame(index)
	if err != nil {
		return nil, err
	}
	bounds := frame.Bounds()
	var evenSum, oddSum float64
	var evenN, oddN int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(frame.GrayAt(x, y).Y)
			// Parity is relative to the frame origin so a non-zero
			// bounds.Min.Y shifts the corrected rows with it.
			if (y-bounds.Min.Y)%2 == 0 {
				evenSum += v
				evenN++
			} else {
				oddSum += v
				oddN++
			}
		}
	}
	if evenN == 0 || oddN == 0 {
		return frame, nil
	}
	bias := evenSum/float64(evenN) - oddSum/float64(oddN)
	out := image.NewGray(bounds)
	copy(out.Pix, frame.Pix)
	for y := bounds.Min.Y + 1; y < bounds.Max.Y; y += 2 {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(frame.GrayAt(x, y).Y) + bias
			out.Pix[out.PixOffset(x, y)] = uint8(clampFloat64(v, 0, 255))
		}
	}
	return out, nil
}

func (b *biasCorrectedSource) FrameCount() int {
	return b.src.FrameCount()
}
