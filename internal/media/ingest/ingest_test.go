package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	xwebp "golang.org/x/image/webp"

	"github.com/cookbookapp/cookbook-server/internal/errors"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{}, nil, logger)
}

// transparentPNG renders a 100x100 PNG with a color gradient and a
// transparent top-left corner.
func transparentPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			alpha := uint8(255)
			if x < 20 && y < 20 {
				alpha = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / 99),
				G: uint8(y * 255 / 99),
				B: 90,
				A: alpha,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestIngest_PNGPreservesAlpha(t *testing.T) {
	p := testPipeline(t)
	dest := filepath.Join(t.TempDir(), "image.webp")

	report, err := p.Ingest(context.Background(), Source{Data: transparentPNG(t), Name: "test.png"}, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if report.Format != "image/png" {
		t.Errorf("format = %q, want image/png", report.Format)
	}
	if report.Dimensions != "100x100" {
		t.Errorf("dimensions = %q, want 100x100", report.Dimensions)
	}
	if report.Compression < -100 || report.Compression > 100 {
		t.Errorf("compression = %v, want within [-100, 100]", report.Compression)
	}

	// Decode the artifact and verify the alpha channel survived.
	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer f.Close()

	out, err := xwebp.Decode(f)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	_, _, _, a := out.At(5, 5).RGBA()
	if a > 0x1000 {
		t.Errorf("transparent corner alpha = %d, want near 0", a)
	}
	_, _, _, a = out.At(80, 80).RGBA()
	if a < 0xf000 {
		t.Errorf("opaque region alpha = %d, want near max", a)
	}
}

func TestIngest_WebPShortCircuit(t *testing.T) {
	p := testPipeline(t)
	dir := t.TempDir()
	ctx := context.Background()

	// Produce a real WebP artifact first.
	first := filepath.Join(dir, "image.webp")
	if _, err := p.Ingest(ctx, Source{Data: transparentPNG(t), Name: "test.png"}, first); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	webpBytes, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	// Re-ingesting WebP bytes copies them verbatim.
	second := filepath.Join(dir, "copy.webp")
	report, err := p.Ingest(ctx, Source{Data: webpBytes, Name: "already.webp"}, second)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if report.Compression != 0 {
		t.Errorf("compression = %v, want 0", report.Compression)
	}
	if report.Format != "WebP (already optimized)" {
		t.Errorf("format = %q", report.Format)
	}
	if report.OriginalSize != report.WebPSize {
		t.Errorf("sizes differ: %d vs %d", report.OriginalSize, report.WebPSize)
	}

	copied, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !bytes.Equal(copied, webpBytes) {
		t.Error("WebP bytes were not copied verbatim")
	}
}

func TestIngest_UnsupportedFormat(t *testing.T) {
	p := testPipeline(t)
	dest := filepath.Join(t.TempDir(), "image.webp")

	bmp := append([]byte("BM"), make([]byte, 64)...)
	_, err := p.Ingest(context.Background(), Source{Data: bmp, Name: "test.bmp"}, dest)
	if !errors.Is(err, errors.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	// No file may be written on failure.
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("artifact written despite failure")
	}
	assertNoStrayFiles(t, filepath.Dir(dest))
}

func TestIngest_CorruptData(t *testing.T) {
	p := testPipeline(t)
	dest := filepath.Join(t.TempDir(), "image.webp")

	// Valid PNG signature followed by garbage.
	corrupt := append(append([]byte(nil), pngSignature...), []byte("this is not a png chunk")...)
	_, err := p.Ingest(context.Background(), Source{Data: corrupt, Name: "corrupt.png"}, dest)
	if !errors.Is(err, errors.ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}

	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("artifact written despite failure")
	}
	assertNoStrayFiles(t, filepath.Dir(dest))
}

func TestIngest_EmptyData(t *testing.T) {
	p := testPipeline(t)
	dest := filepath.Join(t.TempDir(), "image.webp")

	_, err := p.Ingest(context.Background(), Source{Data: []byte{}, Name: "empty"}, dest)
	if !errors.Is(err, errors.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestIngest_FromURL(t *testing.T) {
	pngBytes := transparentPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		if r.Header.Get("Accept") == "" {
			t.Error("missing Accept header")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	}))
	defer srv.Close()

	p := testPipeline(t)
	dest := filepath.Join(t.TempDir(), "image.webp")

	report, err := p.Ingest(context.Background(), Source{URL: srv.URL + "/photo.png"}, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Source != srv.URL+"/photo.png" {
		t.Errorf("source = %q", report.Source)
	}
	if report.OriginalSize != int64(len(pngBytes)) {
		t.Errorf("original size = %d, want %d", report.OriginalSize, len(pngBytes))
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("artifact missing: %v", err)
	}
}

func TestIngest_FetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error status", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"empty body", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := testPipeline(t)
			dest := filepath.Join(t.TempDir(), "image.webp")

			_, err := p.Ingest(context.Background(), Source{URL: srv.URL}, dest)
			if !errors.Is(err, errors.ErrFetchFailed) {
				t.Fatalf("expected ErrFetchFailed, got %v", err)
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Error("artifact written despite failure")
			}
		})
	}
}

func TestCompressionPercent(t *testing.T) {
	tests := []struct {
		original int64
		webp     int64
		want     float64
	}{
		{1000, 500, 50},
		{1000, 1000, 0},
		{1000, 1500, -50},
		{3000, 1000, 66.7},
		{0, 100, 0},
	}

	for _, tt := range tests {
		if got := compressionPercent(tt.original, tt.webp); got != tt.want {
			t.Errorf("compressionPercent(%d, %d) = %v, want %v", tt.original, tt.webp, got, tt.want)
		}
	}
}

// assertNoStrayFiles verifies no temp files were left behind.
func assertNoStrayFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("stray files left in %s: %v", dir, entries)
	}
}
