package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/logger"
)

// stubCompressor echoes the input length and tracks peak concurrency.
type stubCompressor struct {
	active int32
	peak   int32
	delay  time.Duration
}

func (s *stubCompressor) Compress(ctx context.Context, input []byte, c compressor.Constraints, onProgress compressor.ProgressFunc) (*compressor.Result, error) {
	n := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(s.delay)

	if string(input) == "bad" {
		return nil, compressor.ErrUnsupportedImageFormat
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return &compressor.Result{Output: input, CompressedSizeBytes: int64(len(input)), BudgetMet: true}, nil
}


func TestRunnerPreservesOrderAndBoundsConcurrency(t *testing.T) {
	stub := &stubCompressor{delay: 5 * time.Millisecond}
	r := NewRunner(stub, 2, logger.Discard())

	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{Name: fmt.Sprintf("img%d", i), Data: []byte(fmt.Sprintf("data-%d", i))}
	}
	items[3].Data = []byte("bad")

	var mu sync.Mutex
	final := make(map[int]int)
	results := r.Run(context.Background(), items, func(index, percent int) {
		mu.Lock()
		final[index] = percent
		mu.Unlock()
	})

	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Name != items[i].Name {
			t.Fatalf("result %d name = %s, want %s", i, res.Name, items[i].Name)
		}
		if i == 3 {
			if !errors.Is(res.Error, compressor.ErrUnsupportedImageFormat) {
				t.Fatalf("item 3 err = %v", res.Error)
			}
			continue
		}
		if res.Error != nil || string(res.Result.Output) != string(items[i].Data) {
			t.Fatalf("item %d = %+v", i, res)
		}
		if final[i] != 100 {
			t.Fatalf("item %d final progress = %d", i, final[i])
		}
	}
	if peak := atomic.LoadInt32(&stub.peak); peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRunnerCancelled(t *testing.T) {
	r := NewRunner(&stubCompressor{}, 1, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := r.Run(ctx, []Item{{Name: "a", Data: []byte("x")}, {Name: "b", Data: []byte("y")}}, nil)
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Fatalf("%s err = %v, want context.Canceled", res.Name, res.Error)
		}
	}
}

func TestRunnerEmpty(t *testing.T) {
	if got := NewRunner(&stubCompressor{}, 0, logger.Discard()).Run(context.Background(), nil, nil); len(got) != 0 {
		t.Fatalf("got %d results for empty batch", len(got))
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	cons := compressor.AvatarPreset().Constraints()
	items, err := LoadFiles([]string{path}, cons)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(items) != 1 || string(items[0].Data) != "abc" || items[0].Constraints != cons {
		t.Fatalf("items = %+v", items)
	}
	if _, err := LoadFiles([]string{filepath.Join(dir, "missing")}, cons); err == nil {
		t.Fatal("expected error for missing file")
	}
}
