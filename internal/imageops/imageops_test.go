package imageops

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/tealpdf/internal/apperr"
)

func intp(v int) *int { return &v }

func sample(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	return img
}

func writeSample(t *testing.T, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, imaging.Save(sample(w, h), path))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	des, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, de := range des {
		names = append(names, de.Name())
	}
	return names
}

func TestParseResizeMode(t *testing.T) {
	m, err := ParseResizeMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePixels, m)

	m, err = ParseResizeMode("percentage")
	require.NoError(t, err)
	assert.Equal(t, ModePercentage, m)

	_, err = ParseResizeMode("inches")
	assert.Equal(t, "Resize type must be 'pixels' or 'percentage'", apperr.PublicMessage(err, ""))
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		spec ResizeSpec
		w, h int
	}{
		{"percentage", ResizeSpec{Mode: ModePercentage, Percentage: 50}, 400, 150},
		{"fit inside", ResizeSpec{Width: intp(200), Height: intp(200), LockAspect: true}, 200, 75},
		{"width only", ResizeSpec{Width: intp(400), LockAspect: true}, 400, 150},
		{"height only", ResizeSpec{Height: intp(60), LockAspect: true}, 160, 60},
		{"stretch", ResizeSpec{Width: intp(10), Height: intp(90)}, 10, 90},
		{"zero means absent", ResizeSpec{Width: intp(0), Height: intp(30), LockAspect: true}, 80, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := Resolve(800, 300, tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.w, w)
			assert.Equal(t, tc.h, h)
		})
	}
}

func TestResolveValidation(t *testing.T) {
	cases := []struct {
		spec ResizeSpec
		msg  string
	}{
		{ResizeSpec{Mode: ModePercentage}, "Percentage must be specified and greater than 0"},
		{ResizeSpec{LockAspect: true}, "At least one dimension (width or height) must be specified for pixel resize"},
		{ResizeSpec{Width: intp(10)}, "Both width and height are required when aspect ratio is not maintained"},
		{ResizeSpec{Width: intp(1), LockAspect: true}, "Invalid target dimensions 1x0"},
	}
	for _, tc := range cases {
		_, _, err := Resolve(800, 300, tc.spec)
		require.Error(t, err)
		assert.Equal(t, 400, apperr.Status(err))
		assert.Equal(t, tc.msg, apperr.PublicMessage(err, ""))
	}
}

func TestResolveCapsTargetSize(t *testing.T) {
	cases := []struct {
		spec ResizeSpec
		msg  string
	}{
		{ResizeSpec{Mode: ModePercentage, Percentage: 1e6}, "Invalid target dimensions 640000x480000"},
		{ResizeSpec{Width: intp(2000000), Height: intp(2000000)}, "Invalid target dimensions 2000000x2000000"},
		{ResizeSpec{Width: intp(DefaultMaxSide + 1), LockAspect: true}, "Invalid target dimensions 10001x7500"},
		{ResizeSpec{Width: intp(65), Height: intp(10), MaxSide: 64}, "Invalid target dimensions 65x10"},
	}
	for _, tc := range cases {
		_, _, err := Resolve(64, 48, tc.spec)
		require.Error(t, err)
		assert.Equal(t, 400, apperr.Status(err))
		assert.Equal(t, tc.msg, apperr.PublicMessage(err, ""))
	}

	w, h, err := Resolve(64, 48, ResizeSpec{Width: intp(DefaultMaxSide), Height: intp(DefaultMaxSide)})
	require.NoError(t, err)
	assert.Equal(t, [2]int{DefaultMaxSide, DefaultMaxSide}, [2]int{w, h})
}

func TestResolveKeepsAspectWithinOnePixel(t *testing.T) {
	for _, orig := range [][2]int{{800, 300}, {333, 777}, {1920, 1080}, {17, 1000}, {1000, 17}} {
		for _, target := range []int{17, 64, 250, 999, 2048} {
			ow, oh := orig[0], orig[1]
			for _, spec := range []ResizeSpec{
				{Width: intp(target), LockAspect: true},
				{Height: intp(target), LockAspect: true},
			} {
				w, h, err := Resolve(ow, oh, spec)
				if err != nil {
					continue
				}
				expectedH := float64(w) * float64(oh) / float64(ow)
				expectedW := float64(h) * float64(ow) / float64(oh)
				if spec.Width != nil {
					assert.InDelta(t, expectedH, float64(h), 1.0, "%v -> %dx%d", orig, w, h)
				} else {
					assert.InDelta(t, expectedW, float64(w), 1.0, "%v -> %dx%d", orig, w, h)
				}
			}
		}
	}
}

func TestResizeWritesJPEG(t *testing.T) {
	in := writeSample(t, "in.png", 64, 48)
	out := filepath.Join(t.TempDir(), "out.jpg")

	size, err := Resize(in, out, ResizeSpec{Width: intp(32), LockAspect: true})
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 24), size)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 24, img.Bounds().Dy())
}

func TestCrop(t *testing.T) {
	in := writeSample(t, "in.png", 64, 48)
	out := filepath.Join(t.TempDir(), "crop.jpg")

	require.NoError(t, Crop(in, out, CropBox{X: 10, Y: 5, Width: 20, Height: 30}))
	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 30), img.Bounds().Size())
}

func TestCropValidation(t *testing.T) {
	in := writeSample(t, "in.png", 64, 48)
	dir := t.TempDir()
	out := filepath.Join(dir, "crop.jpg")

	cases := []struct {
		box CropBox
		msg string
	}{
		{CropBox{X: 0, Y: 0, Width: 65, Height: 48}, "Crop area extends beyond image boundaries"},
		{CropBox{X: -1, Y: 0, Width: 5, Height: 5}, "Crop coordinates cannot be negative"},
		{CropBox{X: 0, Y: 0, Width: 0, Height: 5}, "Crop width and height must be positive"},
		{CropBox{X: math.MaxInt, Y: 0, Width: 1, Height: 48}, "Crop area extends beyond image boundaries"},
		{CropBox{X: 0, Y: math.MaxInt, Width: 1, Height: 1}, "Crop area extends beyond image boundaries"},
		{CropBox{X: 1, Y: 1, Width: math.MaxInt, Height: math.MaxInt}, "Crop area extends beyond image boundaries"},
	}
	for _, tc := range cases {
		err := Crop(in, out, tc.box)
		require.Error(t, err)
		assert.Equal(t, tc.msg, apperr.PublicMessage(err, ""))
	}
	assert.Empty(t, dirEntries(t, dir))
}

func TestSelectorBeatsEveryStrategy(t *testing.T) {
	img := sample(64, 48)
	for _, parallel := range []bool{false, true} {
		dir := t.TempDir()
		sel := NewSelector(parallel)
		best, err := sel.Compress(context.Background(), img, 80, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Base(best.Path)}, dirEntries(t, dir))

		for _, st := range sel.strategies {
			path, err := st.run(normalize(img), 80, t.TempDir())
			require.NoError(t, err, st.name)
			size, err := sizeOf(path)
			require.NoError(t, err)
			assert.LessOrEqual(t, best.Size, size, "strategy %s", st.name)
		}
	}
}

func TestSelectorSkipsJPEGAtFullQuality(t *testing.T) {
	dir := t.TempDir()
	best, err := NewSelector(false).Compress(context.Background(), sample(16, 16), 100, dir)
	require.NoError(t, err)
	assert.NotEqual(t, "image/jpeg", best.MIME)
	assert.Len(t, dirEntries(t, dir), 1)
}

func TestSelectorTiesKeepEarlierStrategy(t *testing.T) {
	dir := t.TempDir()
	fixed := func(name string) strategy {
		return strategy{
			name: name, ext: "." + name, mime: "x/" + name,
			label: func(int) string { return name },
			run: func(_ *image.NRGBA, _ int, dir string) (string, error) {
				p := filepath.Join(dir, name)
				return p, os.WriteFile(p, []byte("same"), 0o600)
			},
		}
	}
	sel := &Selector{parallel: true, strategies: []strategy{fixed("first"), fixed("second")}}
	best, err := sel.Compress(context.Background(), sample(2, 2), 80, dir)
	require.NoError(t, err)
	assert.Equal(t, "first", best.Label)
	assert.Equal(t, []string{"first"}, dirEntries(t, dir))
}

func TestSelectorAllFail(t *testing.T) {
	dir := t.TempDir()
	failing := strategy{
		name:  "broken",
		label: func(int) string { return "broken" },
		run: func(_ *image.NRGBA, _ int, dir string) (string, error) {
			return encodeTo(dir, ".bin", func(io.Writer) error {
				return errors.New("encoder exploded")
			})
		},
	}
	sel := &Selector{strategies: []strategy{failing, failing}}
	_, err := sel.Compress(context.Background(), sample(2, 2), 80, dir)
	require.ErrorContains(t, err, "all compression strategies failed")
	assert.Empty(t, dirEntries(t, dir))
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestEncodePNGKeepsIndexedForFewColours(t *testing.T) {
	pal := []color.NRGBA{
		{R: 200, G: 30, B: 30, A: 255},
		{R: 30, G: 160, B: 60, A: 255},
		{R: 20, G: 40, B: 220, A: 255},
		{R: 250, G: 250, B: 250, A: 255},
	}
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.SetNRGBA(x, y, pal[rng.Intn(len(pal))])
		}
	}

	dir := t.TempDir()
	path, err := encodePNG(img, 0, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Base(path)}, dirEntries(t, dir))
	assert.IsType(t, &image.Paletted{}, decodePNG(t, path))
}

func TestEncodePNGKeepsFullColourForGradient(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	dir := t.TempDir()
	path, err := encodePNG(img, 0, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Base(path)}, dirEntries(t, dir))
	_, paletted := decodePNG(t, path).(*image.Paletted)
	assert.False(t, paletted)
}

func TestNormalizeDropsSourceType(t *testing.T) {
	src := image.NewGray(image.Rect(2, 2, 6, 6))
	n := normalize(src)
	assert.Equal(t, image.Rect(0, 0, 4, 4), n.Bounds())
}

func TestSupportedFormats(t *testing.T) {
	c, err := SupportedFormats()
	require.NoError(t, err)
	assert.Equal(t, 5, c.TotalCount)
	assert.False(t, c.HEICSupported)
	assert.Equal(t, "jpg", c.SupportedFormats[0].Key)
	assert.True(t, c.SupportedFormats[1].SupportsTransparency)
}
