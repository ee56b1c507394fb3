// Package ingest turns a source image (remote URL or uploaded bytes) into a
// WebP artifact on disk, reporting size, format, and dimension metadata.
//
// The pipeline is strictly sequential: acquire, sniff, decode, encode,
// report. On success exactly one file exists at the destination path; on
// failure none does (temp files are cleaned up on every path).
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	xwebp "golang.org/x/image/webp"

	"github.com/cookbookapp/cookbook-server/internal/errors"
	"github.com/cookbookapp/cookbook-server/internal/ratelimit"
)

// DefaultQuality is the WebP encoder quality used when none is configured.
const DefaultQuality = 80

// webPAlreadyOptimized is reported instead of a MIME string when the
// source was WebP and the bytes were copied verbatim.
const webPAlreadyOptimized = "WebP (already optimized)"

// Source describes where the image bytes come from: either a remote URL
// or resident bytes from an upload.
type Source struct {
	URL  string // remote source; takes effect when Data is nil
	Data []byte // uploaded bytes
	Name string // declared name of the upload, for reporting only
}

// Describe returns the source reference used in reports and logs.
func (s Source) Describe() string {
	if s.URL != "" {
		return s.URL
	}
	if s.Name != "" {
		return s.Name
	}
	return "(uploaded file)"
}

// Report holds the metadata of a successful ingestion.
type Report struct {
	Source       string  `json:"source"`
	Format       string  `json:"format"`     // MIME of the detected source format
	Dimensions   string  `json:"dimensions"` // "WxH" in pixels
	OriginalSize int64   `json:"original_size"`
	WebPSize     int64   `json:"webp_size"`
	Compression  float64 `json:"compression"` // percent saved, one decimal
}

// Pipeline converts source images to WebP artifacts.
type Pipeline struct {
	fetcher *Fetcher
	quality float32
	logger  *slog.Logger
}

// Config holds pipeline settings.
type Config struct {
	Quality            float32 // WebP encoder quality, 1-100
	InsecureSkipVerify bool    // disable TLS verification on fetches (off by default)
}

// New creates an ingestion pipeline. limiter may be nil to disable
// outbound rate limiting.
func New(cfg Config, limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) *Pipeline {
	quality := cfg.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Pipeline{
		fetcher: NewFetcher(cfg.InsecureSkipVerify, limiter, logger),
		quality: quality,
		logger:  logger,
	}
}

// Ingest runs the full pipeline and writes the WebP artifact to destPath.
// Errors carry one of the pipeline codes (FETCH_FAILED, UNSUPPORTED_FORMAT,
// DECODE_FAILED, ENCODE_FAILED); nothing is retried.
func (p *Pipeline) Ingest(ctx context.Context, src Source, destPath string) (*Report, error) {
	// 1. Acquire bytes.
	data := src.Data
	if data == nil {
		if src.URL == "" {
			return nil, errors.FetchFailed("no image source provided")
		}
		fetched, err := p.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeFetchFailed, "could not download the image from the URL")
		}
		data = fetched
	}
	if len(data) == 0 {
		return nil, errors.FetchFailed("image data is empty")
	}

	originalSize := int64(len(data))

	// 2. Detect format from magic bytes, never the filename.
	format := Sniff(data)
	if format == FormatUnknown {
		return nil, errors.UnsupportedFormat("unsupported image format: use JPG, PNG, GIF or WebP")
	}

	// 3. Already WebP: copy verbatim.
	if format == FormatWebP {
		cfg, err := xwebp.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeDecodeFailed, "invalid or corrupt WebP data")
		}
		if err := writeAtomically(destPath, func(f *os.File) error {
			_, werr := f.Write(data)
			return werr
		}); err != nil {
			return nil, errors.Wrap(err, errors.CodeEncodeFailed, "could not copy the WebP file")
		}

		report := &Report{
			Source:       src.Describe(),
			Format:       webPAlreadyOptimized,
			Dimensions:   fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			OriginalSize: originalSize,
			WebPSize:     originalSize,
			Compression:  0,
		}
		p.logReport(report)
		return report, nil
	}

	// 4. Decode. PNG decoding keeps the alpha channel intact; no blending.
	img, err := decode(data, format)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDecodeFailed, "invalid or corrupt image data")
	}

	// 5. Re-encode as WebP.
	if err := writeAtomically(destPath, func(f *os.File) error {
		return webp.Encode(f, img, &webp.Options{Quality: p.quality})
	}); err != nil {
		return nil, errors.Wrap(err, errors.CodeEncodeFailed, "WebP conversion failed")
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeEncodeFailed, "WebP conversion failed")
	}

	bounds := img.Bounds()
	report := &Report{
		Source:       src.Describe(),
		Format:       format.MIME(),
		Dimensions:   fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
		OriginalSize: originalSize,
		WebPSize:     info.Size(),
		Compression:  compressionPercent(originalSize, info.Size()),
	}
	p.logReport(report)
	return report, nil
}

func (p *Pipeline) logReport(r *Report) {
	p.logger.Info("ingested image",
		"source", r.Source,
		"format", r.Format,
		"dimensions", r.Dimensions,
		"original_size", r.OriginalSize,
		"webp_size", r.WebPSize,
		"compression", r.Compression,
	)
}

// decode turns sniffed bytes into an in-memory bitmap.
func decode(data []byte, format Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatPNG:
		return png.Decode(r)
	case FormatGIF:
		return gif.Decode(r)
	default:
		return nil, fmt.Errorf("no decoder for format %s", format)
	}
}

// compressionPercent computes round((1 - webp/original) * 100, 1).
// Negative when the WebP came out larger than the source.
func compressionPercent(originalSize, webpSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	ratio := 1 - float64(webpSize)/float64(originalSize)
	return math.Round(ratio*1000) / 10
}

// writeAtomically writes through a temp file in the destination directory
// and renames it into place, so a failed write never leaves a partial
// artifact behind.
func writeAtomically(destPath string, write func(*os.File) error) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".ingest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
