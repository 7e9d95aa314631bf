package imageops

import (
	"math"
	"strings"

	"github.com/local/tealpdf/internal/apperr"
)

// ResizeMode picks how target dimensions are expressed.
type ResizeMode int

const (
	ModePixels ResizeMode = iota
	ModePercentage
)

func (m ResizeMode) String() string {
	if m == ModePercentage {
		return "percentage"
	}
	return "pixels"
}

// ParseResizeMode accepts the resize_type form value; empty means pixels.
func ParseResizeMode(s string) (ResizeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pixels":
		return ModePixels, nil
	case "percentage":
		return ModePercentage, nil
	}
	return 0, apperr.Validation("Resize type must be 'pixels' or 'percentage'")
}

// DefaultMaxSide bounds each side of a resize target when ResizeSpec.MaxSide
// is not set.
const DefaultMaxSide = 10000

// ResizeSpec is a validated resize request. Nil or zero Width/Height mean
// the dimension was not given. MaxSide caps each output side; zero means
// DefaultMaxSide.
type ResizeSpec struct {
	Mode       ResizeMode
	Width      *int
	Height     *int
	Percentage float64
	LockAspect bool
	MaxSide    int
}

func given(p *int) (int, bool) {
	if p == nil || *p == 0 {
		return 0, false
	}
	return *p, true
}

// Validate checks the request shape before any image is decoded.
func (s ResizeSpec) Validate() error {
	if s.Mode == ModePercentage {
		if !(s.Percentage > 0) {
			return apperr.Validation("Percentage must be specified and greater than 0")
		}
		return nil
	}
	_, hasW := given(s.Width)
	_, hasH := given(s.Height)
	if !hasW && !hasH {
		return apperr.Validation("At least one dimension (width or height) must be specified for pixel resize")
	}
	if !s.LockAspect && (!hasW || !hasH) {
		return apperr.Validation("Both width and height are required when aspect ratio is not maintained")
	}
	return nil
}

// Resolve computes the output size for an origW x origH image. Results are
// truncated toward zero; a non-positive result or a side above the cap is a
// validation error.
func Resolve(origW, origH int, s ResizeSpec) (int, int, error) {
	if err := s.Validate(); err != nil {
		return 0, 0, err
	}
	if origW <= 0 || origH <= 0 {
		return 0, 0, apperr.Validation("Invalid target dimensions %dx%d", origW, origH)
	}

	var w, h float64
	ow, oh := float64(origW), float64(origH)
	width, hasW := given(s.Width)
	height, hasH := given(s.Height)

	switch {
	case s.Mode == ModePercentage:
		f := s.Percentage / 100
		w = math.Floor(ow * f)
		h = math.Floor(oh * f)
	case !s.LockAspect:
		w, h = float64(width), float64(height)
	case hasW && hasH:
		scale := math.Min(float64(width)/ow, float64(height)/oh)
		w = math.Trunc(ow * scale)
		h = math.Trunc(oh * scale)
	case hasW:
		w = float64(width)
		h = math.Trunc(float64(width) * oh / ow)
	default:
		w = math.Trunc(float64(height) * ow / oh)
		h = float64(height)
	}

	limit := s.MaxSide
	if limit <= 0 {
		limit = DefaultMaxSide
	}
	if !(w >= 1 && h >= 1 && w <= float64(limit) && h <= float64(limit)) {
		return 0, 0, apperr.Validation("Invalid target dimensions %.0fx%.0f", w, h)
	}
	return int(w), int(h), nil
}
