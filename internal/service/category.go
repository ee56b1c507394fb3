// Package service orchestrates category operations over the store, the
// image ingestion pipeline, and the on-disk artifact writer.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cookbookapp/cookbook-server/internal/domain"
	"github.com/cookbookapp/cookbook-server/internal/errors"
	"github.com/cookbookapp/cookbook-server/internal/id"
	"github.com/cookbookapp/cookbook-server/internal/media/artifacts"
	"github.com/cookbookapp/cookbook-server/internal/media/ingest"
	"github.com/cookbookapp/cookbook-server/internal/slug"
	"github.com/cookbookapp/cookbook-server/internal/store/sqlite"
	"github.com/cookbookapp/cookbook-server/internal/validation"
)

// CategoryService orchestrates category CRUD and folder materialization.
type CategoryService struct {
	store     *sqlite.Store
	pipeline  *ingest.Pipeline
	writer    *artifacts.Writer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(store *sqlite.Store, pipeline *ingest.Pipeline, writer *artifacts.Writer, logger *slog.Logger) *CategoryService {
	return &CategoryService{
		store:     store,
		pipeline:  pipeline,
		writer:    writer,
		validator: validation.New(),
		logger:    logger,
	}
}

// AddCategoryRequest contains fields for creating a category.
type AddCategoryRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=100"`
	Description  string `json:"description" validate:"max=2000"`
	ImageURL     string `json:"image_url"`
	CreateFolder bool   `json:"create_folder"`
}

// UpdateCategoryRequest contains fields for updating a category.
type UpdateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=2000"`
	ImageURL    string `json:"image_url"`
}

// FolderResult reports a folder materialization. ImageWarning is set when
// the category itself was saved but the image could not be ingested.
type FolderResult struct {
	Path         string         `json:"path"`
	Report       *ingest.Report `json:"report,omitempty"`
	ImageWarning string         `json:"image_warning,omitempty"`
}

// ListResult is a page of categories plus pagination counts.
type ListResult struct {
	Categories []*domain.Category
	Total      int
	Page       int
	Limit      int
	Pages      int
}

// Add creates a category. When req.CreateFolder is set the on-disk folder
// is materialized before returning; an image ingestion failure there is
// reported as a warning on the folder result, not as an error.
func (s *CategoryService) Add(ctx context.Context, req AddCategoryRequest) (*domain.Category, *FolderResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.ImageURL = strings.TrimSpace(req.ImageURL)

	if err := s.validator.Validate(req); err != nil {
		return nil, nil, err
	}
	if err := checkImageURL(req.ImageURL); err != nil {
		return nil, nil, err
	}

	categorySlug := slug.Make(req.Name)
	if categorySlug == "" {
		return nil, nil, errors.Validation("name must contain at least one letter or digit")
	}

	taken, err := s.store.FindActiveDuplicate(ctx, req.Name, categorySlug, "")
	if err != nil {
		return nil, nil, err
	}
	if taken {
		return nil, nil, errors.AlreadyExists("a category with this name already exists")
	}

	categoryID, err := id.Generate("cat")
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	cat := &domain.Category{
		ID:          categoryID,
		Slug:        categorySlug,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateCategory(ctx, cat); err != nil {
		return nil, nil, err
	}
	s.logger.Info("category created", "id", cat.ID, "slug", cat.Slug)

	var folder *FolderResult
	if req.CreateFolder {
		folder, err = s.materialize(ctx, cat)
		if err != nil {
			return nil, nil, err
		}
	}
	return cat, folder, nil
}

// Update modifies an active category. The slug is re-derived only when the
// name changed. When the image source changed and the category folder is
// already on disk, the image is re-ingested synchronously; a failure there
// is a warning on the folder result.
//
// Folder existence is checked against the new slug, so a rename leaves the
// old slug's folder behind and defers re-ingestion until the next folder
// action materializes the new one.
func (s *CategoryService) Update(ctx context.Context, categoryID string, req UpdateCategoryRequest) (*domain.Category, *FolderResult, error) {
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.ImageURL = strings.TrimSpace(req.ImageURL)

	if err := s.validator.Validate(req); err != nil {
		return nil, nil, err
	}
	if err := checkImageURL(req.ImageURL); err != nil {
		return nil, nil, err
	}

	if req.Name != cat.Name {
		newSlug := slug.Make(req.Name)
		if newSlug == "" {
			return nil, nil, errors.Validation("name must contain at least one letter or digit")
		}
		taken, err := s.store.FindActiveDuplicate(ctx, req.Name, newSlug, cat.ID)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, errors.AlreadyExists("a category with this name already exists")
		}
		cat.Name = req.Name
		cat.Slug = newSlug
	}

	imageChanged := req.ImageURL != cat.ImageURL
	cat.Description = req.Description
	cat.ImageURL = req.ImageURL
	cat.Touch()

	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return nil, nil, err
	}
	s.logger.Info("category updated", "id", cat.ID, "slug", cat.Slug)

	var folder *FolderResult
	if s.writer.FolderExists(cat.Slug) {
		if err := s.writer.WriteCategoryJSON(cat); err != nil {
			return nil, nil, err
		}
		if imageChanged && cat.ImageURL != "" {
			folder = &FolderResult{Path: s.writer.CategoryDir(cat.Slug)}
			s.ingestInto(ctx, cat, ingest.Source{URL: cat.ImageURL}, folder)
		}
	}
	return cat, folder, nil
}

// Delete soft-deletes a category. The on-disk folder is left in place.
func (s *CategoryService) Delete(ctx context.Context, categoryID string) error {
	if err := s.store.SoftDeleteCategory(ctx, categoryID, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("category deleted", "id", categoryID)
	return nil
}

// Get returns an active category.
func (s *CategoryService) Get(ctx context.Context, categoryID string) (*domain.Category, error) {
	return s.store.GetCategory(ctx, categoryID)
}

// List returns a page of active categories matching the search term.
func (s *CategoryService) List(ctx context.Context, params sqlite.ListParams) (*ListResult, error) {
	params.Normalize()
	cats, total, err := s.store.ListCategories(ctx, params)
	if err != nil {
		return nil, err
	}

	pages := 0
	if total > 0 {
		pages = (total + params.Limit - 1) / params.Limit
	}
	return &ListResult{
		Categories: cats,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		Pages:      pages,
	}, nil
}

// CreateFolder materializes the on-disk folder for one category.
func (s *CategoryService) CreateFolder(ctx context.Context, categoryID string) (*FolderResult, error) {
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, cat)
}

// CreateAllFolders writes the root index and README covering every active
// category, and materializes folders only for categories that do not have
// one yet. Returns the number of folders newly created; a second run over
// the same data creates none.
func (s *CategoryService) CreateAllFolders(ctx context.Context) (int, error) {
	cats, err := s.store.ListAllActive(ctx)
	if err != nil {
		return 0, err
	}

	if err := s.writer.WriteIndex(cats); err != nil {
		return 0, err
	}

	created := 0
	for _, cat := range cats {
		if s.writer.FolderExists(cat.Slug) {
			continue
		}
		if _, err := s.materialize(ctx, cat); err != nil {
			s.logger.Error("could not materialize category folder", "id", cat.ID, "slug", cat.Slug, "error", err)
			continue
		}
		created++
	}

	if err := s.writer.WriteReadme(cats); err != nil {
		return created, err
	}

	s.logger.Info("folder structure created", "categories", len(cats), "new_folders", created)
	return created, nil
}

// UploadResult reports a successful image upload.
type UploadResult struct {
	Category *domain.Category
	Report   *ingest.Report
	Path     string
}

// GetBySlug returns an active category by its slug.
func (s *CategoryService) GetBySlug(ctx context.Context, categorySlug string) (*domain.Category, error) {
	return s.store.GetCategoryBySlug(ctx, categorySlug)
}

// UploadImage ingests uploaded bytes as the category's image. Unlike URL
// ingestion during a mutation, a pipeline failure here is an error: there
// is no category change to fall back on.
func (s *CategoryService) UploadImage(ctx context.Context, categoryID, filename string, data []byte) (*UploadResult, error) {
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	if _, err := s.writer.EnsureCategoryDir(cat.Slug); err != nil {
		return nil, err
	}

	src := ingest.Source{Data: data, Name: filename}
	destPath := s.writer.ImagePath(cat.Slug)
	report, err := s.pipeline.Ingest(ctx, src, destPath)
	if err != nil {
		if werr := s.writer.WriteImageError(cat.Slug, src.Describe(), err); werr != nil {
			s.logger.Error("could not write image error report", "slug", cat.Slug, "error", werr)
		}
		return nil, err
	}
	if err := s.writer.WriteImageReport(cat.Slug, report); err != nil {
		return nil, err
	}

	cat.Image = domain.ImageFilename
	cat.ImageURL = src.Describe()
	cat.Touch()
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		return nil, err
	}
	if err := s.writer.WriteCategoryJSON(cat); err != nil {
		return nil, err
	}
	return &UploadResult{Category: cat, Report: report, Path: destPath}, nil
}

// materialize creates the category folder, writes category.json, and
// ingests the image when a source is set. Ingestion failures do not fail
// the materialization; they surface as ImageWarning plus image_error.txt.
func (s *CategoryService) materialize(ctx context.Context, cat *domain.Category) (*FolderResult, error) {
	dir, err := s.writer.EnsureCategoryDir(cat.Slug)
	if err != nil {
		return nil, err
	}
	if err := s.writer.WriteCategoryJSON(cat); err != nil {
		return nil, err
	}

	result := &FolderResult{Path: dir}
	if cat.ImageURL != "" {
		s.ingestInto(ctx, cat, ingest.Source{URL: cat.ImageURL}, result)
	}
	return result, nil
}

// ingestInto runs the pipeline for cat and records the outcome on result:
// Report plus updated row on success, ImageWarning plus image_error.txt on
// failure.
func (s *CategoryService) ingestInto(ctx context.Context, cat *domain.Category, src ingest.Source, result *FolderResult) {
	report, err := s.pipeline.Ingest(ctx, src, s.writer.ImagePath(cat.Slug))
	if err != nil {
		s.logger.Warn("image ingestion failed", "id", cat.ID, "source", src.Describe(), "error", err)
		result.ImageWarning = err.Error()
		if werr := s.writer.WriteImageError(cat.Slug, src.Describe(), err); werr != nil {
			s.logger.Error("could not write image error report", "slug", cat.Slug, "error", werr)
		}
		return
	}

	result.Report = report
	if err := s.writer.WriteImageReport(cat.Slug, report); err != nil {
		s.logger.Error("could not write image report", "slug", cat.Slug, "error", err)
	}

	cat.Image = domain.ImageFilename
	cat.Touch()
	if err := s.store.UpdateCategory(ctx, cat); err != nil {
		s.logger.Error("could not record ingested image", "id", cat.ID, "error", err)
		return
	}
	if err := s.writer.WriteCategoryJSON(cat); err != nil {
		s.logger.Error("could not rewrite category.json", "slug", cat.Slug, "error", err)
	}
}

// checkImageURL accepts empty values and absolute http/https URLs only.
func checkImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Validation("image_url must be an absolute http or https URL")
	}
	return nil
}
