package compressor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"upload-compressor-go/internal/encoding"
	"upload-compressor-go/internal/logger"
	"upload-compressor-go/internal/raster"
)

// DefaultMaxInputBytes is the absolute ceiling on raw input size. Callers are
// expected to enforce a tighter limit before calling Compress.
const DefaultMaxInputBytes = 64 * bytesPerMB

// Options configures a DefaultCompressor.
type Options struct {
	// Encoder fixes the output format. Nil negotiates one with PreferWebP.
	Encoder       encoding.Encoder
	PreferWebP    bool
	Search        SearchParams
	MaxInputBytes int64
	MaxPixels     int
	Logger        *logrus.Logger
}

// DefaultCompressor is the default implementation of the Compressor interface.
// It holds only immutable configuration and is safe for concurrent use; every
// Compress call owns its raster and attempts exclusively.
type DefaultCompressor struct {
	encoder       encoding.Encoder
	decoder       *raster.Decoder
	params        SearchParams
	maxInputBytes int64
	logger        *logrus.Logger
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(opts Options) (*DefaultCompressor, error) {
	params := opts.Search
	if params == (SearchParams{}) {
		params = DefaultSearchParams()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}

	enc := opts.Encoder
	if enc == nil {
		var err error
		enc, err = encoding.Negotiate(opts.PreferWebP)
		if err != nil {
			return nil, fmt.Errorf("negotiate format: %w", err)
		}
	}

	maxInput := opts.MaxInputBytes
	if maxInput <= 0 {
		maxInput = DefaultMaxInputBytes
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &DefaultCompressor{
		encoder:       enc,
		decoder:       raster.NewDecoder(opts.MaxPixels),
		params:        params,
		maxInputBytes: maxInput,
		logger:        log,
	}, nil
}

// Format returns the output format used by every session of this compressor.
func (c *DefaultCompressor) Format() encoding.Format {
	return c.encoder.Format()
}

// Compress runs one compression session: decode, plan, budget search, result.
func (c *DefaultCompressor) Compress(ctx context.Context, input []byte, cons Constraints, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	if err := cons.Validate(); err != nil {
		return nil, err
	}
	if int64(len(input)) > c.maxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds ceiling of %d bytes", ErrInputTooLarge, len(input), c.maxInputBytes)
	}

	sessionID := uuid.NewString()
	log := c.logger.WithFields(logrus.Fields{
		"session":      sessionID,
		"format":       c.encoder.Format().String(),
		"target_bytes": cons.TargetSizeBytes,
	})

	img, err := c.decoder.Decode(input)
	if err != nil {
		if errors.Is(err, raster.ErrTooManyPixels) {
			err = fmt.Errorf("%w: %v", ErrInputTooLarge, err)
		}
		log.WithError(err).Warn("Decode failed")
		return nil, err
	}

	plannedW, plannedH := PlanDimensions(img.Width, img.Height, cons.MaxLongEdgePixels)
	log.Debugf("Decoded %s %dx%d, planned %dx%d", img.SourceFormat, img.Width, img.Height, plannedW, plannedH)

	progress := newProgressReporter(onProgress, c.params.maxAttempts(cons.InitialQuality))
	progress.start()

	search := &budgetSearch{
		img:         img,
		plannedW:    plannedW,
		plannedH:    plannedH,
		constraints: cons,
		params:      c.params,
		encoder:     c.encoder,
		progress:    progress,
		log:         log,
	}
	outcome, err := search.run(ctx)
	if err != nil {
		log.WithError(err).Error("Compression failed")
		return nil, err
	}
	progress.finish()

	best := outcome.best
	res := &Result{
		SessionID:           sessionID,
		Output:              best.Output,
		OriginalSizeBytes:   int64(len(input)),
		CompressedSizeBytes: int64(best.SizeBytes),
		Format:              c.encoder.Format().String(),
		MIMEType:            c.encoder.Format().MIMEType(),
		Width:               best.Width,
		Height:              best.Height,
		OriginalWidth:       img.Width,
		OriginalHeight:      img.Height,
		Quality:             best.Quality,
		Scale:               best.Scale,
		Attempts:            outcome.attempts,
		BudgetMet:           outcome.budgetMet,
		StartedAt:           start,
		FinishedAt:          time.Now(),
	}
	res.SavingsPercent = savingsPercent(res.OriginalSizeBytes, res.CompressedSizeBytes)

	entry := log.WithFields(logrus.Fields{
		"original_size":   res.OriginalSizeBytes,
		"compressed_size": res.CompressedSizeBytes,
		"savings":         res.SavingsPercent,
		"attempts":        res.Attempts,
		"duration":        res.FinishedAt.Sub(start).String(),
	})
	if res.BudgetMet {
		entry.Info("Image compressed")
	} else {
		entry.Warn("Budget not met, returning smallest attempt")
	}
	return res, nil
}

// savingsPercent is round(100*(1-compressed/original)) clamped to [0,100].
func savingsPercent(original, compressed int64) int {
	if original <= 0 {
		return 0
	}
	v := int(math.Round(100 * (1 - float64(compressed)/float64(original))))
	return min(max(v, 0), 100)
}
