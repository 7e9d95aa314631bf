package imageops

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
	"github.com/gen2brain/jpegli"
	"github.com/google/uuid"
	"github.com/hhrutter/tiff"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/local/tealpdf/internal/bestof"
	"github.com/local/tealpdf/internal/logger"
	"github.com/local/tealpdf/internal/metrics"
)

// paletteGain is how much smaller the indexed PNG must be to replace the
// full-colour one.
const paletteGain = 0.9

// Compressed is the winning encoding.
type Compressed struct {
	Path  string
	Label string
	Ext   string
	MIME  string
	Size  int64
}

// Ratio is 1 - size/original; zero when original is unknown.
func (c Compressed) Ratio(original int64) float64 {
	if original <= 0 {
		return 0
	}
	return 1 - float64(c.Size)/float64(original)
}

// strategy writes one encoding of img into dir and returns the file path.
type strategy struct {
	name  string
	ext   string
	mime  string
	label func(quality int) string
	skip  func(quality int) bool
	run   func(img *image.NRGBA, quality int, dir string) (string, error)
}

// Selector picks the smallest of several encodings.
type Selector struct {
	parallel   bool
	strategies []strategy
}

// NewSelector returns a Selector with the default strategies. When parallel
// is set the encoders run concurrently; selection order is unchanged.
func NewSelector(parallel bool) *Selector {
	return &Selector{parallel: parallel, strategies: defaultStrategies()}
}

func defaultStrategies() []strategy {
	return []strategy{
		{
			name: "png", ext: ".png", mime: "image/png",
			label: func(int) string { return "PNG (lossless)" },
			run:   encodePNG,
		},
		{
			name: "webp", ext: ".webp", mime: "image/webp",
			label: func(int) string { return "WebP (lossless)" },
			run: func(img *image.NRGBA, _ int, dir string) (string, error) {
				return encodeTo(dir, ".webp", func(w io.Writer) error {
					return webp.Encode(w, img, &webp.Options{Lossless: true, Quality: 100, Exact: true})
				})
			},
		},
		{
			name: "jpeg", ext: ".jpg", mime: "image/jpeg",
			label: func(q int) string { return fmt.Sprintf("JPEG (quality %d)", q) },
			skip:  func(q int) bool { return q >= 100 },
			run: func(img *image.NRGBA, q int, dir string) (string, error) {
				return encodeTo(dir, ".jpg", func(w io.Writer) error {
					return jpegli.Encode(w, flatten(img), jpegOptions(q))
				})
			},
		},
		{
			name: "tiff", ext: ".tiff", mime: "image/tiff",
			label: func(int) string { return "TIFF (LZW)" },
			run: func(img *image.NRGBA, _ int, dir string) (string, error) {
				return encodeTo(dir, ".tiff", func(w io.Writer) error {
					return tiff.Encode(w, img, &tiff.Options{Compression: tiff.LZW, Predictor: true})
				})
			},
		},
	}
}

type outcome struct {
	path string
	err  error
	ran  bool
}

// Compress encodes img with every applicable strategy into dir and keeps
// the smallest file. On error no file is left behind.
func (s *Selector) Compress(ctx context.Context, img image.Image, quality int, dir string) (Compressed, error) {
	outcomes := make([]outcome, len(s.strategies))
	runOne := func(i int, src *image.NRGBA) {
		st := s.strategies[i]
		if st.skip != nil && st.skip(quality) {
			return
		}
		path, err := st.run(src, quality, dir)
		outcomes[i] = outcome{path: path, err: err, ran: true}
	}

	if s.parallel {
		var g errgroup.Group
		for i := range s.strategies {
			src := normalize(img)
			g.Go(func() error {
				runOne(i, src)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range s.strategies {
			if ctx.Err() != nil {
				break
			}
			runOne(i, normalize(img))
		}
	}

	var t bestof.Tracker
	for i, o := range outcomes {
		st := s.strategies[i]
		if !o.ran {
			continue
		}
		if o.err != nil {
			t.Fail(st.name, o.err)
			metrics.StrategyFailed("image", st.name)
			log.Warn().Err(o.err).Str("strategy", st.name).Msg("image compression strategy failed")
			continue
		}
		t.OfferFile(st.name, st.label(quality), o.path)
	}

	if err := ctx.Err(); err != nil {
		t.Discard()
		return Compressed{}, err
	}
	best, err := t.Best()
	if err != nil {
		return Compressed{}, fmt.Errorf("all compression strategies failed: %w", err)
	}

	var winner strategy
	for _, st := range s.strategies {
		if st.name == best.Strategy {
			winner = st
		}
	}
	metrics.StrategyWon("image", best.Strategy)
	log.Info().Str("strategy", best.Label).Str("size", logger.Size(best.Size)).Msg("image compressed")
	return Compressed{Path: best.Path, Label: best.Label, Ext: winner.ext, MIME: winner.mime, Size: best.Size}, nil
}

// normalize copies the pixels into a fresh NRGBA buffer so no decoder
// metadata reaches an encoder. Alpha is preserved.
func normalize(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// encodePNG writes the full-colour PNG, then an indexed variant, and keeps
// the indexed one only when it is clearly smaller.
func encodePNG(img *image.NRGBA, _ int, dir string) (string, error) {
	full, err := encodeTo(dir, ".png", func(w io.Writer) error {
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	})
	if err != nil {
		return "", err
	}

	indexed, err := encodeTo(dir, ".png", func(w io.Writer) error {
		return imaging.Encode(w, palettize(img), imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	})
	if err != nil {
		log.Debug().Err(err).Msg("palette PNG variant failed")
		return full, nil
	}

	fullSize, ferr := sizeOf(full)
	idxSize, ierr := sizeOf(indexed)
	if ferr == nil && ierr == nil && float64(idxSize) < paletteGain*float64(fullSize) {
		_ = os.Remove(full)
		return indexed, nil
	}
	_ = os.Remove(indexed)
	return full, nil
}

// palettize reduces img to at most 256 colours with median cut and
// Floyd-Steinberg dithering.
func palettize(img *image.NRGBA) *image.Paletted {
	q := quantize.MedianCutQuantizer{}
	pal := q.Quantize(make(color.Palette, 0, 256), img)
	dst := image.NewPaletted(img.Bounds(), pal)
	draw.FloydSteinberg.Draw(dst, img.Bounds(), img, img.Bounds().Min)
	return dst
}

// encodeTo writes a uuid-named file in dir through enc. A failed encode
// removes the partial file.
func encodeTo(dir, ext string, enc func(io.Writer) error) (path string, err error) {
	path = filepath.Join(dir, "img-"+uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
			path = ""
		}
	}()
	bw := bufio.NewWriter(f)
	if err = enc(bw); err != nil {
		return path, err
	}
	err = bw.Flush()
	return path, err
}

func sizeOf(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
