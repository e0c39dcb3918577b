package compressor

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"upload-compressor-go/internal/encoding"
	"upload-compressor-go/internal/raster"
)

const epsilon = 1e-9

// SearchParams tunes the quality and scale ladders of the budget search.
type SearchParams struct {
	QualityStep   float64
	QualityFloor  float64
	ScaleFactor   float64
	MaxScaleSteps int
}

// DefaultSearchParams returns the stock ladder: 0.1 quality steps down to 0.4,
// then up to four 0.85x downscales.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		QualityStep:   0.1,
		QualityFloor:  0.4,
		ScaleFactor:   0.85,
		MaxScaleSteps: 4,
	}
}

// Validate rejects ladders that could grow without bound.
func (p SearchParams) Validate() error {
	if p.QualityStep < 0.01 || p.QualityStep > 1 {
		return fmt.Errorf("quality step must be in [0.01,1], got %g", p.QualityStep)
	}
	if p.QualityFloor <= 0 || p.QualityFloor > 1 {
		return fmt.Errorf("quality floor must be in (0,1], got %g", p.QualityFloor)
	}
	if p.ScaleFactor < 0.1 || p.ScaleFactor > 0.99 {
		return fmt.Errorf("scale factor must be in [0.1,0.99], got %g", p.ScaleFactor)
	}
	if p.MaxScaleSteps < 0 || p.MaxScaleSteps > 10 {
		return fmt.Errorf("max scale steps must be in [0,10], got %d", p.MaxScaleSteps)
	}
	return nil
}

// qualityLadder lists the qualities tried at each scale level. Each rung is
// derived from the index rather than by repeated subtraction.
func (p SearchParams) qualityLadder(initial float64) []float64 {
	ladder := []float64{initial}
	for i := 1; ; i++ {
		q := initial - float64(i)*p.QualityStep
		if q < p.QualityFloor-epsilon || q <= epsilon {
			break
		}
		ladder = append(ladder, math.Round(q*1e6)/1e6)
	}
	return ladder
}

// maxAttempts is the upper bound on encodes for one search.
func (p SearchParams) maxAttempts(initial float64) int {
	return len(p.qualityLadder(initial)) * (p.MaxScaleSteps + 1)
}

// searchOutcome is the best attempt of a search plus bookkeeping.
type searchOutcome struct {
	best      Attempt
	budgetMet bool
	attempts  int
}

// budgetSearch runs the two-level quality/scale ladder for one session.
type budgetSearch struct {
	img         *raster.Image
	plannedW    int
	plannedH    int
	constraints Constraints
	params      SearchParams
	encoder     encoding.Encoder
	progress    *progressReporter
	log         *logrus.Entry
}

func (s *budgetSearch) run(ctx context.Context) (*searchOutcome, error) {
	ladder := s.params.qualityLadder(s.constraints.InitialQuality)
	out := &searchOutcome{}
	var haveBest bool

	scale := 1.0
	prevW, prevH := 0, 0
	for level := 0; level <= s.params.MaxScaleSteps; level++ {
		if level > 0 {
			scale *= s.params.ScaleFactor
		}
		w, h := scaledDimensions(s.plannedW, s.plannedH, scale)
		if w == prevW && h == prevH {
			s.log.Debugf("Scale level %d collapses to %dx%d, stopping", level, w, h)
			break
		}
		prevW, prevH = w, h

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pixels := s.resample(w, h)

		for _, q := range ladder {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			data, err := s.encoder.Encode(pixels, q)
			if err != nil {
				return nil, fmt.Errorf("encode %s at %dx%d q=%.2f: %w", s.encoder.Format(), w, h, q, err)
			}
			out.attempts++
			s.progress.step()

			a := Attempt{
				Quality:   q,
				Scale:     scale,
				Width:     w,
				Height:    h,
				Output:    data,
				SizeBytes: len(data),
			}
			s.log.WithFields(logrus.Fields{
				"attempt": out.attempts,
				"quality": q,
				"scale":   scale,
				"width":   w,
				"height":  h,
				"size":    a.SizeBytes,
			}).Debug("Encode attempt")

			if !haveBest || a.SizeBytes < out.best.SizeBytes {
				out.best = a
				haveBest = true
			}
			if int64(a.SizeBytes) <= s.constraints.TargetSizeBytes {
				out.best = a
				out.budgetMet = true
				return out, nil
			}
		}
	}
	return out, nil
}

// resample produces the working raster for one scale level, always from the
// decoded original so quality does not degrade across levels.
func (s *budgetSearch) resample(w, h int) image.Image {
	if w == s.img.Width && h == s.img.Height {
		return s.img.Pixels
	}
	return imaging.Resize(s.img.Pixels, w, h, imaging.Lanczos)
}
