package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cookbookapp/cookbook-server/internal/domain"
	"github.com/cookbookapp/cookbook-server/internal/errors"
)

// WriteIndex writes the root categories.json with every category in the
// given order, pretty-printed.
func (w *Writer) WriteIndex(categories []*domain.Category) error {
	if err := os.MkdirAll(w.basePath, dirPerm); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not create base folder")
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	return w.writeJSON(filepath.Join(w.basePath, IndexFile), categories)
}

// WriteReadme generates the root README.md summarizing every category.
func (w *Writer) WriteReadme(categories []*domain.Category) error {
	if err := os.MkdirAll(w.basePath, dirPerm); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not create base folder")
	}

	var b strings.Builder
	b.WriteString("# Categories Project\n\n")
	fmt.Fprintf(&b, "Structure created: %s\n\n", time.Now().Format(reportTimeFmt))
	fmt.Fprintf(&b, "## Categories (%d)\n\n", len(categories))

	for _, cat := range categories {
		fmt.Fprintf(&b, "### %s\n", cat.Name)
		fmt.Fprintf(&b, "- **Slug**: `%s`\n", cat.Slug)
		description := cat.Description
		if description == "" {
			description = "None"
		}
		fmt.Fprintf(&b, "- **Description**: %s\n", description)
		if cat.ImageURL != "" {
			fmt.Fprintf(&b, "- **Image URL**: %s\n", cat.ImageURL)
			fmt.Fprintf(&b, "- **Image WebP**: %s\n", domain.ImageFilename)
		}
		b.WriteString("\n")
	}

	path := filepath.Join(w.basePath, ReadmeFile)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "could not write README.md")
	}
	return nil
}
