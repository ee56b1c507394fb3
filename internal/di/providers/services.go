package providers

import (
	"github.com/samber/do/v2"

	"github.com/cookbookapp/cookbook-server/internal/logger"
	"github.com/cookbookapp/cookbook-server/internal/media/artifacts"
	"github.com/cookbookapp/cookbook-server/internal/media/ingest"
	"github.com/cookbookapp/cookbook-server/internal/service"
)

// ProvideCategoryService provides the category business service.
func ProvideCategoryService(i do.Injector) (*service.CategoryService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	pipeline := do.MustInvoke[*ingest.Pipeline](i)
	writer := do.MustInvoke[*artifacts.Writer](i)

	return service.NewCategoryService(storeHandle.Store, pipeline, writer, log.Logger), nil
}
