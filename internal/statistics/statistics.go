package statistics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"upload-compressor-go/internal/compressor"
	"upload-compressor-go/internal/upload"
)

// MaxRecentErrors bounds the error entries kept in memory.
const MaxRecentErrors = 100

// Statistics aggregates outcomes across compression sessions.
type Statistics struct {
	SessionsStarted   int64
	SessionsSucceeded int64
	SessionsDegraded  int64
	SessionsFailed    int64

	UnsupportedInputs int64
	CorruptInputs     int64
	OversizedInputs   int64
	RejectedUploads   int64

	EncodeAttempts  int64
	BytesIn         int64
	BytesOut        int64
	AnnouncedSaving int64

	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	SessionsPerSec  float64
	AverageSavings  float64
	totalSessionDur int64

	TotalErrors  int64
	recentErrors []StatError
	nextError    int

	FormatStats map[string]int64

	mutex sync.RWMutex
}

// StatError represents an error that occurred while handling one input.
type StatError struct {
	Input     string
	Operation string
	Error     string
	Timestamp time.Time
}

// Snapshot is a point-in-time copy of the counters, safe to serialise.
type Snapshot struct {
	SessionsStarted   int64            `json:"sessions_started"`
	SessionsSucceeded int64            `json:"sessions_succeeded"`
	SessionsDegraded  int64            `json:"sessions_degraded"`
	SessionsFailed    int64            `json:"sessions_failed"`
	UnsupportedInputs int64            `json:"unsupported_inputs"`
	CorruptInputs     int64            `json:"corrupt_inputs"`
	OversizedInputs   int64            `json:"oversized_inputs"`
	RejectedUploads   int64            `json:"rejected_uploads"`
	EncodeAttempts    int64            `json:"encode_attempts"`
	BytesIn           int64            `json:"bytes_in"`
	BytesOut          int64            `json:"bytes_out"`
	TotalErrors       int64            `json:"total_errors"`
	AverageSessionMs  float64          `json:"average_session_ms"`
	Formats           map[string]int64 `json:"formats"`
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:    time.Now(),
		FormatStats:  make(map[string]int64),
		recentErrors: make([]StatError, 0, MaxRecentErrors),
	}
}

// IncrementSessionsStarted increases the count of started sessions by 1.
func (s *Statistics) IncrementSessionsStarted() {
	atomic.AddInt64(&s.SessionsStarted, 1)
}

// RecordResult records a completed session.
func (s *Statistics) RecordResult(res *compressor.Result) {
	atomic.AddInt64(&s.SessionsSucceeded, 1)
	if !res.BudgetMet {
		atomic.AddInt64(&s.SessionsDegraded, 1)
	}
	if res.ShouldAnnounceSavings() {
		atomic.AddInt64(&s.AnnouncedSaving, 1)
	}
	atomic.AddInt64(&s.EncodeAttempts, int64(res.Attempts))
	atomic.AddInt64(&s.BytesIn, res.OriginalSizeBytes)
	atomic.AddInt64(&s.BytesOut, res.CompressedSizeBytes)
	atomic.AddInt64(&s.totalSessionDur, int64(res.FinishedAt.Sub(res.StartedAt)))

	s.mutex.Lock()
	s.FormatStats[res.Format]++
	s.mutex.Unlock()
}

// RecordFailure records a session that ended in an error, classified by kind.
func (s *Statistics) RecordFailure(input string, err error) {
	atomic.AddInt64(&s.SessionsFailed, 1)
	switch {
	case errors.Is(err, compressor.ErrUnsupportedImageFormat):
		atomic.AddInt64(&s.UnsupportedInputs, 1)
	case errors.Is(err, compressor.ErrCorruptImage):
		atomic.AddInt64(&s.CorruptInputs, 1)
	case errors.Is(err, compressor.ErrInputTooLarge):
		atomic.AddInt64(&s.OversizedInputs, 1)
	}
	s.AddError(input, "compress", err.Error())
}

// RecordRejected records an upload refused by pre-flight validation.
func (s *Statistics) RecordRejected(input string, err error) {
	atomic.AddInt64(&s.RejectedUploads, 1)
	if errors.Is(err, upload.ErrFileTooLarge) {
		atomic.AddInt64(&s.OversizedInputs, 1)
	}
	s.AddError(input, "preflight", err.Error())
}

// AddError records an error that occurred during processing. Only the last
// MaxRecentErrors entries are kept; TotalErrors counts all of them.
func (s *Statistics) AddError(input, operation, errorMsg string) {
	atomic.AddInt64(&s.TotalErrors, 1)
	entry := StatError{
		Input:     input,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.recentErrors) < MaxRecentErrors {
		s.recentErrors = append(s.recentErrors, entry)
		return
	}
	s.recentErrors[s.nextError] = entry
	s.nextError = (s.nextError + 1) % MaxRecentErrors
}

// RecentErrors returns the retained errors, oldest first.
func (s *Statistics) RecentErrors() []StatError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]StatError, 0, len(s.recentErrors))
	out = append(out, s.recentErrors[s.nextError:]...)
	return append(out, s.recentErrors[:s.nextError]...)
}

// Finalize calculates duration, throughput and average savings.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	succeeded := atomic.LoadInt64(&s.SessionsSucceeded)
	if s.Duration.Seconds() > 0 {
		s.SessionsPerSec = float64(succeeded) / s.Duration.Seconds()
	}

	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in > 0 {
		s.AverageSavings = 100 * (1 - float64(out)/float64(in))
		if s.AverageSavings < 0 {
			s.AverageSavings = 0
		}
	}
}

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	formats := make(map[string]int64, len(s.FormatStats))
	for k, v := range s.FormatStats {
		formats[k] = v
	}
	s.mutex.RUnlock()

	succeeded := atomic.LoadInt64(&s.SessionsSucceeded)
	var avgMs float64
	if succeeded > 0 {
		avgMs = float64(atomic.LoadInt64(&s.totalSessionDur)) / float64(succeeded) / float64(time.Millisecond)
	}

	return Snapshot{
		SessionsStarted:   atomic.LoadInt64(&s.SessionsStarted),
		SessionsSucceeded: succeeded,
		SessionsDegraded:  atomic.LoadInt64(&s.SessionsDegraded),
		SessionsFailed:    atomic.LoadInt64(&s.SessionsFailed),
		UnsupportedInputs: atomic.LoadInt64(&s.UnsupportedInputs),
		CorruptInputs:     atomic.LoadInt64(&s.CorruptInputs),
		OversizedInputs:   atomic.LoadInt64(&s.OversizedInputs),
		RejectedUploads:   atomic.LoadInt64(&s.RejectedUploads),
		EncodeAttempts:    atomic.LoadInt64(&s.EncodeAttempts),
		BytesIn:           atomic.LoadInt64(&s.BytesIn),
		BytesOut:          atomic.LoadInt64(&s.BytesOut),
		TotalErrors:       atomic.LoadInt64(&s.TotalErrors),
		AverageSessionMs:  avgMs,
		Formats:           formats,
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	perSec := s.SessionsPerSec
	avgSavings := s.AverageSavings
	s.mutex.RUnlock()

	return fmt.Sprintf(`Upload Compressor Statistics Summary:

Sessions:
		Started: %d
		Succeeded: %d
		Degraded (budget missed): %d
		Failed: %d

Rejections:
		Unsupported Format: %d
		Corrupt Image: %d
		Too Large: %d
		Pre-flight Rejected: %d

Output:
		Encode Attempts: %d
		Bytes In: %s
		Bytes Out: %s
		Average Savings: %.1f%%
		Savings Announced: %d

Performance:
		Duration: %v
		Sessions/Second: %.2f`,
		atomic.LoadInt64(&s.SessionsStarted),
		atomic.LoadInt64(&s.SessionsSucceeded),
		atomic.LoadInt64(&s.SessionsDegraded),
		atomic.LoadInt64(&s.SessionsFailed),
		atomic.LoadInt64(&s.UnsupportedInputs),
		atomic.LoadInt64(&s.CorruptInputs),
		atomic.LoadInt64(&s.OversizedInputs),
		atomic.LoadInt64(&s.RejectedUploads),
		atomic.LoadInt64(&s.EncodeAttempts),
		FormatBytes(atomic.LoadInt64(&s.BytesIn)),
		FormatBytes(atomic.LoadInt64(&s.BytesOut)),
		avgSavings,
		atomic.LoadInt64(&s.AnnouncedSaving),
		duration,
		perSec)
}

// GetFormatBreakdown returns a formatted breakdown of output formats.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FormatStats) == 0 {
		return "No format statistics available"
	}

	formats := make([]string, 0, len(s.FormatStats))
	for format := range s.FormatStats {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	result := "Output Format Breakdown:\n"
	for _, format := range formats {
		result += fmt.Sprintf("  %s: %d\n", format, s.FormatStats[format])
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	total := atomic.LoadInt64(&s.TotalErrors)
	if total == 0 {
		return "No errors occurred during processing"
	}

	recent := s.RecentErrors()
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	result := fmt.Sprintf("Errors (%d total):\n", total)
	for _, err := range recent {
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.Input,
			err.Error)
	}
	if hidden := total - int64(len(recent)); hidden > 0 {
		result += fmt.Sprintf("  ... and %d earlier errors\n", hidden)
	}
	return result
}

// FormatBytes returns a human-readable string for a byte count.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
