package overlay

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Variant is the decoration assigned to a track for its whole lifetime.
type Variant string

const (
	VariantAntler Variant = "antler" // reindeer antlers plus a red nose marker
	VariantHat    Variant = "hat"    // santa hat, no secondary marker
)

// ParseVariant accepts the variant names used in configuration and the API.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "antler", "antlers":
		return VariantAntler, nil
	case "hat", "santa":
		return VariantHat, nil
	}
	return "", fmt.Errorf("unknown decoration variant %q", s)
}

// HeadScale is the accessory width as a multiple of the face width.
func (v Variant) HeadScale() float64 {
	if v == VariantAntler {
		return 1.6
	}
	return 1.4
}

// HasNose reports whether the variant carries a nose marker.
func (v Variant) HasNose() bool {
	return v == VariantAntler
}

// VariantChooser picks the decoration for a newly created track.
type VariantChooser interface {
	Choose() Variant
}

// VariantChooserFunc adapts a function to VariantChooser.
type VariantChooserFunc func() Variant

// Choose calls f.
func (f VariantChooserFunc) Choose() Variant { return f() }

// RandomVariant picks antler or hat with equal probability and no
// persisted seed.
func RandomVariant() VariantChooser {
	return VariantChooserFunc(func() Variant {
		if rand.IntN(2) == 0 {
			return VariantAntler
		}
		return VariantHat
	})
}

// SeededVariant is a reproducible chooser for replays.
func SeededVariant(seed uint64) VariantChooser {
	var mu sync.Mutex
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return VariantChooserFunc(func() Variant {
		mu.Lock()
		defer mu.Unlock()
		if r.IntN(2) == 0 {
			return VariantAntler
		}
		return VariantHat
	})
}

// FixedVariant always returns v.
func FixedVariant(v Variant) VariantChooser {
	return VariantChooserFunc(func() Variant { return v })
}
