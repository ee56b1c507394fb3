// Package domain defines the core types for the Cookbook server.
package domain

import "time"

// Status is the lifecycle state of a category.
type Status string

// Category lifecycle states. Deletion is always soft: a deleted category
// disappears from listings but keeps its row and its on-disk folder.
const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// ImageFilename is the fixed name of the converted artifact inside a
// category folder.
const ImageFilename = "image.webp"

// Category represents a recipe category.
// Slug is derived from Name and is unique among active categories.
type Category struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`                  // URL-safe key: "main-courses"
	Name        string    `json:"name"`                  // Display name: "Main Courses"
	Description string    `json:"description,omitempty"` // Optional free text
	ImageURL    string    `json:"image_url,omitempty"`   // Source reference (remote URL or upload path)
	Image       string    `json:"image,omitempty"`       // "image.webp" once ingestion succeeded
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive reports whether the category is visible to listings.
func (c *Category) IsActive() bool {
	return c.Status == StatusActive
}

// Touch updates the UpdatedAt timestamp.
func (c *Category) Touch() {
	c.UpdatedAt = time.Now().UTC()
}
