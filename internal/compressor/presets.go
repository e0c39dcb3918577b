package compressor

import (
	"fmt"
	"strings"
)

// Preset names used by the upload call sites.
const (
	PresetAvatar  = "avatar"
	PresetGallery = "gallery"
)

// Preset is a named set of compression constraints.
type Preset struct {
	Name              string
	MaxSizeMB         float64
	MaxLongEdgePixels int
	InitialQuality    float64
}

// Constraints converts the preset into Constraints.
func (p Preset) Constraints() Constraints {
	return ConstraintsFromMB(p.MaxSizeMB, p.MaxLongEdgePixels, p.InitialQuality)
}

// AvatarPreset is the profile photo preset: 0.5 MB, 800 px, quality 0.9.
func AvatarPreset() Preset {
	return Preset{Name: PresetAvatar, MaxSizeMB: 0.5, MaxLongEdgePixels: 800, InitialQuality: 0.9}
}

// GalleryPreset is the portfolio image preset: 4 MB, 2560 px, quality 0.95.
func GalleryPreset() Preset {
	return Preset{Name: PresetGallery, MaxSizeMB: 4, MaxLongEdgePixels: 2560, InitialQuality: 0.95}
}

// DefaultPresets returns the built-in presets keyed by name.
func DefaultPresets() map[string]Preset {
	return map[string]Preset{
		PresetAvatar:  AvatarPreset(),
		PresetGallery: GalleryPreset(),
	}
}

// LookupPreset finds a preset by case-insensitive name.
func LookupPreset(presets map[string]Preset, name string) (Preset, error) {
	p, ok := presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset: %s", name)
	}
	return p, nil
}
