package coordinator

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// Film accumulates finished pixel samples into the final image. It
// models the abstract Film collaborator from §6.1: AddSample merges one
// sample's contribution, WriteImage flushes the accumulated image to
// disk. Production binaries supply their own implementation backed by
// the excluded film/filter kernel.
type Film interface {
	AddSample(pFilm types.Point2f, l types.Spectrum, weight float64)
	WriteImage(path string) error
}

// StubFilm is a package-local Film: it merges samples with a simple
// weighted running average per pixel and writes a plain-text dump
// instead of a real image codec. It is enough to exercise the merge
// and write paths in tests and the reference cmd/ binaries.
type StubFilm struct {
	mu     sync.Mutex
	pixels map[[2]int32]*pixelAccum
}

type pixelAccum struct {
	sum    types.Spectrum
	weight float64
}

// NewStubFilm creates an empty film.
func NewStubFilm() *StubFilm {
	return &StubFilm{pixels: make(map[[2]int32]*pixelAccum)}
}

// AddSample implements Film.
func (f *StubFilm) AddSample(pFilm types.Point2f, l types.Spectrum, weight float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := [2]int32{int32(pFilm.X), int32(pFilm.Y)}
	acc, ok := f.pixels[key]
	if !ok {
		acc = &pixelAccum{}
		f.pixels[key] = acc
	}
	acc.sum = acc.sum.Add(types.Spectrum{R: l.R * weight, G: l.G * weight, B: l.B * weight})
	acc.weight += weight
}

// WriteImage writes a deterministic, human-readable dump of every
// accumulated pixel to path. Calling it repeatedly is idempotent: it
// always reflects the current accumulator state, overwriting whatever
// was there before.
func (f *StubFilm) WriteImage(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("coordinator: write image: %w", err)
	}
	defer file.Close()

	keys := make([][2]int32, 0, len(f.pixels))
	for key := range f.pixels {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][1] != keys[j][1] {
			return keys[i][1] < keys[j][1]
		}
		return keys[i][0] < keys[j][0]
	})
	for _, key := range keys {
		acc := f.pixels[key]
		avg := acc.sum
		if acc.weight > 0 {
			avg = types.Spectrum{R: acc.sum.R / acc.weight, G: acc.sum.G / acc.weight, B: acc.sum.B / acc.weight}
		}
		if _, err := fmt.Fprintf(file, "%d %d %f %f %f\n", key[0], key[1], avg.R, avg.G, avg.B); err != nil {
			return fmt.Errorf("coordinator: write image: %w", err)
		}
	}
	return nil
}

// PixelCount reports how many distinct pixels have received a sample.
func (f *StubFilm) PixelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pixels)
}
