package compressor

import "fmt"

// announceThreshold is the savings percentage above which callers show the
// savings message to the user.
const announceThreshold = 10

// ShouldAnnounceSavings reports whether the savings are worth telling the user about.
func (r *Result) ShouldAnnounceSavings() bool {
	return r.SavingsPercent > announceThreshold
}

// SavingsMessage formats the result as "X MB → Y MB, Z% saved".
func (r *Result) SavingsMessage() string {
	return fmt.Sprintf("%.2f MB → %.2f MB, %d%% saved",
		float64(r.OriginalSizeBytes)/bytesPerMB,
		float64(r.CompressedSizeBytes)/bytesPerMB,
		r.SavingsPercent)
}
