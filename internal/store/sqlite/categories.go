package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cookbookapp/cookbook-server/internal/domain"
	"github.com/cookbookapp/cookbook-server/internal/errors"
)

// categoryColumns is the ordered list of columns selected in category queries.
// Must match the scan order in scanCategory.
const categoryColumns = `id, slug, name, description, image_url, image, status, created_at, updated_at`

// DefaultListLimit is the page size used when the caller does not specify one.
const DefaultListLimit = 20

// MaxListLimit caps the page size a caller may request.
const MaxListLimit = 100

// ListParams controls search and pagination for ListCategories.
type ListParams struct {
	Search string // case-insensitive substring over name and description
	Page   int    // 1-based
	Limit  int
}

// Normalize clamps pagination parameters to sane values.
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
}

// scanCategory scans a sql.Row (or sql.Rows via its Scan method) into a domain.Category.
func scanCategory(scanner interface{ Scan(dest ...any) error }) (*domain.Category, error) {
	var c domain.Category

	var (
		description sql.NullString
		imageURL    sql.NullString
		image       sql.NullString
		status      string
		createdAt   string
		updatedAt   string
	)

	err := scanner.Scan(
		&c.ID,
		&c.Slug,
		&c.Name,
		&description,
		&imageURL,
		&image,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Description = description.String
	c.ImageURL = imageURL.String
	c.Image = image.String
	c.Status = domain.Status(status)

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

// CreateCategory inserts a new category.
// Returns errors.ErrAlreadyExists if an active category already holds the
// same name or slug.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, slug, name, description, image_url, image, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Slug,
		c.Name,
		nullString(c.Description),
		nullString(c.ImageURL),
		nullString(c.Image),
		string(c.Status),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.AlreadyExists("a category with this name already exists")
		}
		return err
	}
	return nil
}

// GetCategory retrieves an active category by ID.
// Returns errors.ErrNotFound if it does not exist or was soft-deleted.
func (s *Store) GetCategory(ctx context.Context, categoryID string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND status = 'active'`, categoryID)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("category %s not found", categoryID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategoryBySlug retrieves an active category by slug.
// Returns errors.ErrNotFound if it does not exist or was soft-deleted.
func (s *Store) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = ? AND status = 'active'`, slug)

	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("category %s not found", slug)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindActiveDuplicate looks for another active category holding the given
// name or slug, excluding excludeID. Returns (found, error).
func (s *Store) FindActiveDuplicate(ctx context.Context, name, slug, excludeID string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM categories
		WHERE (name = ? OR slug = ?) AND id != ? AND status = 'active'
		LIMIT 1`,
		name, slug, excludeID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateCategory persists changed fields of an active category.
// Returns errors.ErrNotFound if the row is missing or deleted, and
// errors.ErrAlreadyExists on a name/slug collision with another active row.
func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET slug = ?, name = ?, description = ?, image_url = ?, image = ?, updated_at = ?
		WHERE id = ? AND status = 'active'`,
		c.Slug,
		c.Name,
		nullString(c.Description),
		nullString(c.ImageURL),
		nullString(c.Image),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errors.AlreadyExists("a category with this name already exists")
		}
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("category %s not found", c.ID)
	}
	return nil
}

// SoftDeleteCategory marks a category as deleted. The row and any on-disk
// folder are kept.
// Returns errors.ErrNotFound if the category is missing or already deleted.
func (s *Store) SoftDeleteCategory(ctx context.Context, categoryID string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET status = 'deleted', updated_at = ?
		WHERE id = ? AND status = 'active'`,
		formatTime(updatedAt), categoryID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFoundf("category %s not found", categoryID)
	}
	return nil
}

// ListCategories returns active categories matching params plus the total
// match count (before pagination), ordered by creation time descending.
func (s *Store) ListCategories(ctx context.Context, params ListParams) ([]*domain.Category, int, error) {
	params.Normalize()

	where := `status = 'active'`
	var args []any
	if params.Search != "" {
		// SQLite LIKE is case-insensitive for ASCII by default.
		where += ` AND (name LIKE ? OR description LIKE ?)`
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	countArgs := append([]any(nil), args...)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE `+where, countArgs...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (params.Page - 1) * params.Limit
	args = append(args, params.Limit, offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE `+where+`
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if cats == nil {
		cats = []*domain.Category{}
	}

	return cats, total, nil
}

// ListAllActive returns every active category ordered by creation time.
// Used by the bulk folder operation.
func (s *Store) ListAllActive(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE status = 'active' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cats == nil {
		cats = []*domain.Category{}
	}

	return cats, nil
}
