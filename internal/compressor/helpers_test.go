package compressor

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"sync"
	"testing"

	"upload-compressor-go/internal/encoding"
)

func makeTestImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(x * 255 / w)
			img.Pix[off+1] = uint8(y * 255 / h)
			img.Pix[off+2] = uint8((x + y) % 256)
			img.Pix[off+3] = 0xff
		}
	}
	return img
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, makeTestImage(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// fakeEncoder returns buffers whose length is decided by sizeFn, recording
// every call so tests can count encodes.
type fakeEncoder struct {
	mu     sync.Mutex
	sizeFn func(w, h int, q float64) int
	calls  []fakeCall
}

type fakeCall struct {
	w, h int
	q    float64
	size int
}

func (f *fakeEncoder) Format() encoding.Format { return encoding.FormatJPEG }

func (f *fakeEncoder) Encode(img image.Image, q float64) ([]byte, error) {
	b := img.Bounds()
	n := f.sizeFn(b.Dx(), b.Dy(), q)
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{w: b.Dx(), h: b.Dy(), q: q, size: n})
	f.mu.Unlock()
	return make([]byte, n), nil
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeEncoder) smallest() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := math.MaxInt
	for _, c := range f.calls {
		m = min(m, c.size)
	}
	return m
}

func constantSize(n int) func(int, int, float64) int {
	return func(int, int, float64) int { return n }
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) record(v int) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func checkProgress(t *testing.T, values []int) {
	t.Helper()
	if len(values) == 0 {
		t.Fatal("progress callback never invoked")
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			t.Fatalf("progress decreased at %d: %v", i, values)
		}
	}
	for _, v := range values[:len(values)-1] {
		if v > 99 {
			t.Fatalf("progress reached %d before completion: %v", v, values)
		}
	}
	if last := values[len(values)-1]; last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
}

func newTestCompressor(t *testing.T, enc encoding.Encoder) *DefaultCompressor {
	t.Helper()
	c, err := NewDefaultCompressor(Options{Encoder: enc})
	if err != nil {
		t.Fatalf("NewDefaultCompressor: %v", err)
	}
	return c
}
