package api

import (
	json "github.com/go-json-experiment/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cookbookapp/cookbook-server/internal/http/response"
	"github.com/cookbookapp/cookbook-server/internal/service"
	"github.com/cookbookapp/cookbook-server/internal/store/sqlite"
)

// handleListCategories returns a page of active categories.
// GET /api/v1/categories?search=&page=&limit=
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := sqlite.ListParams{
		Search: r.URL.Query().Get("search"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}

	result, err := s.categoryService.List(ctx, params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.List(w, result.Categories, response.Pagination{
		Page:  result.Page,
		Limit: result.Limit,
		Total: result.Total,
		Pages: result.Pages,
	}, s.logger)
}

// handleGetCategory returns a single active category.
// GET /api/v1/categories/{id}
func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID := chi.URLParam(r, "id")

	cat, err := s.categoryService.Get(ctx, categoryID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, cat, s.logger)
}

// handleCreateCategory creates a category, optionally materializing its
// folder. An image ingestion failure during folder creation does not fail
// the request; the warning rides along in the message field.
// POST /api/v1/categories
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.AddCategoryRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	cat, folder, err := s.categoryService.Add(ctx, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if folder != nil && folder.ImageWarning != "" {
		response.CreatedWithMessage(w, cat, "image could not be ingested: "+folder.ImageWarning, s.logger)
		return
	}
	response.Created(w, cat, s.logger)
}

// handleUpdateCategory updates an active category.
// PUT /api/v1/categories/{id}
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID := chi.URLParam(r, "id")

	var req service.UpdateCategoryRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	cat, folder, err := s.categoryService.Update(ctx, categoryID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if folder != nil && folder.ImageWarning != "" {
		response.SuccessWithMessage(w, cat, "image could not be ingested: "+folder.ImageWarning, s.logger)
		return
	}
	response.Success(w, cat, s.logger)
}

// handleDeleteCategory soft-deletes a category.
// DELETE /api/v1/categories/{id}
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID := chi.URLParam(r, "id")

	if err := s.categoryService.Delete(ctx, categoryID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"id": categoryID}, s.logger)
}

// handleCreateFolder materializes the on-disk folder for one category.
// POST /api/v1/categories/{id}/folder
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID := chi.URLParam(r, "id")

	folder, err := s.categoryService.CreateFolder(ctx, categoryID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if folder.ImageWarning != "" {
		response.SuccessWithMessage(w, folder, "image could not be ingested: "+folder.ImageWarning, s.logger)
		return
	}
	response.Success(w, folder, s.logger)
}

// handleCreateAllFolders materializes every missing category folder and
// regenerates the root index and README.
// POST /api/v1/categories/folders
func (s *Server) handleCreateAllFolders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	created, err := s.categoryService.CreateAllFolders(ctx)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]int{"created": created}, s.logger)
}

// queryInt parses an integer query parameter, zero when absent or invalid.
func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
