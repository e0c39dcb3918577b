package compressor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"upload-compressor-go/internal/raster"
)

var (
	// ErrUnsupportedImageFormat is returned when the input cannot be decoded.
	ErrUnsupportedImageFormat = raster.ErrUnsupportedImageFormat
	// ErrCorruptImage is returned when the input decodes to a zero-area raster.
	ErrCorruptImage = raster.ErrCorruptImage
	// ErrInputTooLarge is returned when the raw input or its declared raster
	// exceeds the compressor's absolute ceiling.
	ErrInputTooLarge = errors.New("input too large")
	// ErrInvalidConstraints is returned when Constraints fail validation.
	ErrInvalidConstraints = errors.New("invalid compression constraints")
)

const bytesPerMB = 1024 * 1024

// Constraints bound the output of one compression call.
type Constraints struct {
	TargetSizeBytes   int64
	MaxLongEdgePixels int
	InitialQuality    float64
}

// ConstraintsFromMB builds Constraints from a megabyte budget.
func ConstraintsFromMB(maxSizeMB float64, maxLongEdge int, initialQuality float64) Constraints {
	return Constraints{
		TargetSizeBytes:   int64(maxSizeMB * bytesPerMB),
		MaxLongEdgePixels: maxLongEdge,
		InitialQuality:    initialQuality,
	}
}

// Validate checks the invariants on Constraints.
func (c Constraints) Validate() error {
	if c.TargetSizeBytes <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidConstraints, c.TargetSizeBytes)
	}
	if c.MaxLongEdgePixels <= 0 {
		return fmt.Errorf("%w: max long edge must be positive, got %d", ErrInvalidConstraints, c.MaxLongEdgePixels)
	}
	if c.InitialQuality <= 0 || c.InitialQuality > 1 {
		return fmt.Errorf("%w: initial quality must be in (0,1], got %g", ErrInvalidConstraints, c.InitialQuality)
	}
	return nil
}

// Attempt is one encode of the search.
type Attempt struct {
	Quality   float64
	Scale     float64
	Width     int
	Height    int
	Output    []byte
	SizeBytes int
}

// Result describes the outcome of compressing a single image.
type Result struct {
	SessionID           string
	Output              []byte
	OriginalSizeBytes   int64
	CompressedSizeBytes int64
	SavingsPercent      int
	Format              string
	MIMEType            string
	Width               int
	Height              int
	OriginalWidth       int
	OriginalHeight      int
	Quality             float64
	Scale               float64
	Attempts            int
	// BudgetMet is false for a degraded result: the smallest attempt found
	// after the search ladder was exhausted.
	BudgetMet  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProgressFunc receives a non-decreasing percentage in 0..100. The last call
// of a successful compression is always 100.
type ProgressFunc func(percent int)

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress decodes input, fits it into the constraints and returns the encoded result.
	// A budget that cannot be met is not an error; see Result.BudgetMet.
	Compress(ctx context.Context, input []byte, c Constraints, onProgress ProgressFunc) (*Result, error)
}
