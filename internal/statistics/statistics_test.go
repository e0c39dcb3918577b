package statistics

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/upload"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{4 * 1024 * 1024, "4.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordOutcomes(t *testing.T) {
	s := NewStatistics()
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.IncrementSessionsStarted()
			s.RecordResult(&compressor.Result{
				OriginalSizeBytes:   1000,
				CompressedSizeBytes: 400,
				SavingsPercent:      60,
				Format:              "jpeg",
				Attempts:            2,
				BudgetMet:           i%2 == 0,
				StartedAt:           start,
				FinishedAt:          start.Add(10 * time.Millisecond),
			})
		}(i)
	}
	wg.Wait()

	s.RecordFailure("a.png", fmt.Errorf("decode: %w", compressor.ErrUnsupportedImageFormat))
	s.RecordFailure("b.gif", compressor.ErrCorruptImage)
	s.RecordRejected("c.jpg", fmt.Errorf("%w: 30MB", upload.ErrFileTooLarge))
	s.Finalize()

	snap := s.Snapshot()
	if snap.SessionsSucceeded != 10 || snap.SessionsDegraded != 5 || snap.SessionsFailed != 2 {
		t.Fatalf("session counters = %+v", snap)
	}
	if snap.UnsupportedInputs != 1 || snap.CorruptInputs != 1 || snap.OversizedInputs != 1 || snap.RejectedUploads != 1 {
		t.Fatalf("rejection counters = %+v", snap)
	}
	if snap.EncodeAttempts != 20 || snap.BytesIn != 10000 || snap.BytesOut != 4000 {
		t.Fatalf("byte counters = %+v", snap)
	}
	if snap.Formats["jpeg"] != 10 {
		t.Fatalf("formats = %v", snap.Formats)
	}
	if snap.AverageSessionMs < 9.9 || snap.AverageSessionMs > 10.1 {
		t.Fatalf("average session ms = %f", snap.AverageSessionMs)
	}
	if s.AverageSavings < 59.9 || s.AverageSavings > 60.1 {
		t.Fatalf("average savings = %f", s.AverageSavings)
	}

	summary := s.GetSummary()
	for _, want := range []string{"Succeeded: 10", "Degraded (budget missed): 5", "Bytes In: 9.8 KB"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if !strings.Contains(s.GetErrorSummary(), "Errors (3 total)") {
		t.Errorf("error summary = %q", s.GetErrorSummary())
	}
}

func TestErrorsAreBounded(t *testing.T) {
	s := NewStatistics()
	total := MaxRecentErrors*3 + 7
	for i := 0; i < total; i++ {
		s.AddError(fmt.Sprintf("upload-%d", i), "compress", "boom")
	}

	recent := s.RecentErrors()
	if len(recent) != MaxRecentErrors {
		t.Fatalf("retained %d errors, want %d", len(recent), MaxRecentErrors)
	}
	if first, last := recent[0].Input, recent[len(recent)-1].Input; first != fmt.Sprintf("upload-%d", total-MaxRecentErrors) || last != fmt.Sprintf("upload-%d", total-1) {
		t.Fatalf("retained window = %s..%s", first, last)
	}
	if snap := s.Snapshot(); snap.TotalErrors != int64(total) {
		t.Fatalf("total errors = %d, want %d", snap.TotalErrors, total)
	}

	summary := s.GetErrorSummary()
	if !strings.Contains(summary, fmt.Sprintf("Errors (%d total)", total)) {
		t.Errorf("summary header wrong:\n%s", summary)
	}
	if !strings.Contains(summary, fmt.Sprintf("upload-%d", total-1)) {
		t.Errorf("summary missing newest error:\n%s", summary)
	}
	if !strings.Contains(summary, fmt.Sprintf("and %d earlier errors", total-10)) {
		t.Errorf("summary missing hidden count:\n%s", summary)
	}
}

func TestFormatBreakdownSorted(t *testing.T) {
	s := NewStatistics()
	for _, f := range []string{"webp", "jpeg", "webp"} {
		s.RecordResult(&compressor.Result{Format: f, BudgetMet: true})
	}
	want := "Output Format Breakdown:\n  jpeg: 1\n  webp: 2\n"
	if got := s.GetFormatBreakdown(); got != want {
		t.Errorf("breakdown = %q, want %q", got, want)
	}
}
