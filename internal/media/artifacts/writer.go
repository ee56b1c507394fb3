// Package artifacts materializes categories on disk: a folder per slug
// holding category.json, the WebP image, and a human-readable status
// report, plus a root-level index and README produced by bulk runs.
package artifacts

import (
	"fmt"
	json "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/cookbookapp/cookbook-server/internal/domain"
	"github.com/cookbookapp/cookbook-server/internal/errors"
	"github.com/cookbookapp/cookbook-server/internal/media/ingest"
)

// Fixed artifact filenames inside a category folder.
const (
	CategoryFile  = "category.json"
	InfoFile      = "image_info.txt"
	ErrorFile     = "image_error.txt"
	IndexFile     = "categories.json"
	ReadmeFile    = "README.md"
	reportTimeFmt = "2006-01-02 15:04:05"
)

const dirPerm = 0o755

// Writer manages the on-disk layout under a base path.
type Writer struct {
	basePath string
	logger   *slog.Logger
	sizes    *message.Printer
}

// NewWriter returns a writer rooted at basePath. The directory is
// created lazily on the first write.
func NewWriter(basePath string, logger *slog.Logger) *Writer {
	return &Writer{
		basePath: basePath,
		logger:   logger,
		sizes:    message.NewPrinter(language.English),
	}
}

// BasePath returns the root directory of the layout.
func (w *Writer) BasePath() string { return w.basePath }

// CategoryDir returns the folder path for a slug.
func (w *Writer) CategoryDir(slug string) string {
	return filepath.Join(w.basePath, slug)
}

// ImagePath returns the path of the WebP artifact for a slug.
func (w *Writer) ImagePath(slug string) string {
	return filepath.Join(w.basePath, slug, domain.ImageFilename)
}

// FolderExists reports whether the category folder is already on disk.
func (w *Writer) FolderExists(slug string) bool {
	info, err := os.Stat(w.CategoryDir(slug))
	return err == nil && info.IsDir()
}

// EnsureCategoryDir creates the category folder (and the base path) if
// missing and returns its path. Safe to call repeatedly.
func (w *Writer) EnsureCategoryDir(slug string) (string, error) {
	dir := w.CategoryDir(slug)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", errors.Wrapf(err, errors.CodeInternal, "could not create folder for %q", slug)
	}
	return dir, nil
}

// folderRecord is the shape of category.json. The camelCase keys at the
// bottom sit alongside the category's own snake_case fields; both are
// part of the published file format.
type folderRecord struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Image       string `json:"image,omitempty"`
	FolderPath  string `json:"folderPath"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// WriteCategoryJSON writes (or rewrites) category.json for the category.
// createdAt is set on the first write only; rewrites keep the original
// value and refresh updatedAt.
func (w *Writer) WriteCategoryJSON(cat *domain.Category) error {
	dir, err := w.EnsureCategoryDir(cat.Slug)
	if err != nil {
		return err
	}

	now := time.Now().Format(time.RFC3339)
	record := folderRecord{
		ID:          cat.ID,
		Slug:        cat.Slug,
		Name:        cat.Name,
		Description: cat.Description,
		ImageURL:    cat.ImageURL,
		Image:       cat.Image,
		FolderPath:  dir,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prev, ok := w.readRecord(dir); ok && prev.CreatedAt != "" {
		record.CreatedAt = prev.CreatedAt
	}

	return w.writeJSON(filepath.Join(dir, CategoryFile), record)
}

// readRecord loads an existing category.json, if any. Corrupt files are
// treated as absent rather than blocking the rewrite.
func (w *Writer) readRecord(dir string) (folderRecord, bool) {
	data, err := os.ReadFile(filepath.Join(dir, CategoryFile))
	if err != nil {
		return folderRecord{}, false
	}
	var record folderRecord
	if err := json.Unmarshal(data, &record); err != nil {
		w.logger.Warn("ignoring corrupt category.json", "dir", dir, "error", err)
		return folderRecord{}, false
	}
	return record, true
}

// WriteImageReport writes image_info.txt from a successful ingestion and
// removes any stale image_error.txt, so the two stay mutually exclusive.
func (w *Writer) WriteImageReport(slug string, report *ingest.Report) error {
	dir, err := w.EnsureCategoryDir(slug)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Image downloaded and converted successfully\n")
	fmt.Fprintf(&b, "Source: %s\n", report.Source)
	fmt.Fprintf(&b, "Original format: %s\n", report.Format)
	fmt.Fprintf(&b, "Dimensions: %s\n", report.Dimensions)
	fmt.Fprintf(&b, "Original size: %s bytes\n", w.sizes.Sprintf("%d", report.OriginalSize))
	fmt.Fprintf(&b, "WebP size: %s bytes\n", w.sizes.Sprintf("%d", report.WebPSize))
	fmt.Fprintf(&b, "Compression: %.1f%% saved\n", report.Compression)
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(reportTimeFmt))

	if err := os.WriteFile(filepath.Join(dir, InfoFile), []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "could not write %s", InfoFile)
	}
	w.removeStale(dir, ErrorFile)
	return nil
}

// WriteImageError writes image_error.txt from a failed ingestion and
// removes any stale image_info.txt.
func (w *Writer) WriteImageError(slug, source string, ingestErr error) error {
	dir, err := w.EnsureCategoryDir(slug)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Image download or conversion failed\n")
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Error: %s\n", ingestErr.Error())
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(reportTimeFmt))

	if err := os.WriteFile(filepath.Join(dir, ErrorFile), []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "could not write %s", ErrorFile)
	}
	w.removeStale(dir, InfoFile)
	return nil
}

func (w *Writer) removeStale(dir, name string) {
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("could not remove stale report file", "path", path, "error", err)
	}
}

// writeJSON marshals v pretty-printed with UTF-8 left unescaped.
func (w *Writer) writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "could not create %s", filepath.Base(path))
	}
	defer f.Close()

	if err := json.MarshalWrite(f, v, jsontext.WithIndent("  ")); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "could not encode %s", filepath.Base(path))
	}
	return nil
}
