// Package imageops implements the image routes: resize, crop and
// multi-format compression.
package imageops

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/jpegli"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/local/tealpdf/internal/apperr"
)

// outputQuality is used for resize and crop results.
const outputQuality = 95

// Decode opens path, applying any EXIF orientation.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Resize scales the image at in and writes a JPEG to out. It returns the new size.
func Resize(in, out string, spec ResizeSpec) (image.Point, error) {
	if err := spec.Validate(); err != nil {
		return image.Point{}, err
	}
	img, err := Decode(in)
	if err != nil {
		return image.Point{}, err
	}
	b := img.Bounds()
	w, h, err := Resolve(b.Dx(), b.Dy(), spec)
	if err != nil {
		return image.Point{}, err
	}

	resized := imaging.Resize(img, w, h, imaging.Lanczos)
	if err := writeJPEG(out, resized, outputQuality); err != nil {
		return image.Point{}, err
	}
	log.Info().
		Str("mode", spec.Mode.String()).
		Bool("lock_aspect", spec.LockAspect).
		Str("from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy())).
		Str("to", fmt.Sprintf("%dx%d", w, h)).
		Msg("resized image")
	return image.Pt(w, h), nil
}

// CropBox is a requested crop rectangle in source pixels.
type CropBox struct {
	X, Y, Width, Height int
}

// validate checks the box against a w x h image.
func (c CropBox) validate(w, h int) error {
	if c.X < 0 || c.Y < 0 {
		return apperr.Validation("Crop coordinates cannot be negative")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return apperr.Validation("Crop width and height must be positive")
	}
	if c.Width > w-c.X || c.Height > h-c.Y {
		return apperr.Validation("Crop area extends beyond image boundaries")
	}
	return nil
}

// Crop cuts box out of in and writes a JPEG to out.
func Crop(in, out string, box CropBox) error {
	if box.X < 0 || box.Y < 0 || box.Width <= 0 || box.Height <= 0 {
		return box.validate(0, 0)
	}
	img, err := Decode(in)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if err := box.validate(b.Dx(), b.Dy()); err != nil {
		return err
	}
	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height).Add(b.Min)
	cropped := imaging.Crop(img, rect)
	if err := writeJPEG(out, cropped, outputQuality); err != nil {
		return err
	}
	log.Info().Interface("box", box).Msg("cropped image")
	return nil
}

// flatten composites img over white, dropping transparency for JPEG output.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func jpegOptions(quality int) *jpegli.EncodingOptions {
	sub := image.YCbCrSubsampleRatio420
	if quality > 90 {
		sub = image.YCbCrSubsampleRatio444
	}
	return &jpegli.EncodingOptions{
		Quality:           quality,
		ChromaSubsampling: sub,
		ProgressiveLevel:  2,
		OptimizeCoding:    true,
	}
}

func writeJPEG(path string, img image.Image, quality int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := jpegli.Encode(f, flatten(img), jpegOptions(quality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
