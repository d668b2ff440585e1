package main

import (
	"image"
	"image/draw"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/elyall/whisk-1/whisk"
	"github.com/pkg/errors"
)

// dirSource serves a movie stored as a directory of PNG frames, ordered
// by filename. Frames are decoded on demand and converted to 8-bit
// grayscale, since that is all the tracer works on.
type dirSource struct {
	paths []string
}

func openFrameDir(dir string) (whisk.FrameSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read frame directory")
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".png" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no .png frames in %s", dir)
	}
	sort.Strings(paths)
	return &dirSource{paths: paths}, nil
}

func (d *dirSource) Frame(index int) (*image.Gray, error) {
	if index < 0 || index >= len(d.paths) {
		return nil, errors.Wrapf(whisk.ErrFrameRange, "frame %d not in [0, %d)", index, len(d.paths))
	}
	file, err := os.Open(d.paths[index])
	if err != nil {
		return nil, errors.Wrapf(err, "open frame %d", index)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode frame %d (%s)", index, d.paths[index])
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray, nil
}

func (d *dirSource) FrameCount() int {
	return len(d.paths)
}
