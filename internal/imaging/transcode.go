// Package imaging holds the attachment transcoder: decode, aspect-preserving
// downscale, re-encode to a profile's target format.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"path/filepath"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/metrics"
)

// fitWithin computes target dimensions for a bitmap of w x h constrained to
// maxW x maxH: scale down by width first, then by height if still over,
// rounding to the nearest pixel at the end. Never upscales.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	fw, fh := float64(w), float64(h)
	if fw > float64(maxW) {
		fh = fh * float64(maxW) / fw
		fw = float64(maxW)
	}
	if fh > float64(maxH) {
		fw = fw * float64(maxH) / fh
		fh = float64(maxH)
	}
	return int(math.Round(fw)), int(math.Round(fh))
}

// Transcode decodes src, scales it to fit the profile bounds and re-encodes
// it to the profile's format and quality. The source is never mutated; the
// result carries an updated filename extension, MIME type and mod time.
// Already-compliant images are still re-encoded, which normalizes format and
// compression at the cost of a wasted pass; callers rely on that.
// The only failure mode is an undecodable source.
func Transcode(src domain.SourceFile, p config.Profile) (domain.SourceFile, error) {
	start := time.Now()

	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return domain.SourceFile{}, fmt.Errorf("decode %s: %w", src.Name, err)
	}

	bounds := img.Bounds()
	targetW, targetH := fitWithin(bounds.Dx(), bounds.Dy(), p.MaxWidth, p.MaxHeight)

	out := img
	if targetW != bounds.Dx() || targetH != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	switch p.Format {
	case "png":
		err = png.Encode(&buf, out)
	case "jpeg", "":
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: int(math.Round(p.Quality * 100))})
	default:
		return domain.SourceFile{}, fmt.Errorf("unsupported output format %q", p.Format)
	}
	if err != nil {
		return domain.SourceFile{}, fmt.Errorf("encode %s: %w", src.Name, err)
	}

	result := domain.SourceFile{
		Name:     replaceExt(src.Name, p.Format),
		MimeType: mimeFor(p.Format),
		ModTime:  time.Now(),
		Data:     buf.Bytes(),
	}
	metrics.ObserveTranscode(time.Since(start), src.Size(), result.Size())
	return result, nil
}

// Dimensions reads image dimensions from encoded bytes without decoding the
// full bitmap.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("read image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func replaceExt(name, format string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if format == "png" {
		return base + ".png"
	}
	return base + ".jpg"
}

func mimeFor(format string) string {
	if format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
