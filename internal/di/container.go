// Package di provides dependency injection configuration for the Cookbook server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/cookbookapp/cookbook-server/internal/config"
	"github.com/cookbookapp/cookbook-server/internal/di/providers"
	"github.com/cookbookapp/cookbook-server/internal/logger"
	"github.com/cookbookapp/cookbook-server/internal/media/artifacts"
	"github.com/cookbookapp/cookbook-server/internal/media/ingest"
	"github.com/cookbookapp/cookbook-server/internal/ratelimit"
	"github.com/cookbookapp/cookbook-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Media layer
	do.Provide(injector, providers.ProvideFetchLimiter)
	do.Provide(injector, providers.ProvideIngestPipeline)
	do.Provide(injector, providers.ProvideArtifactWriter)

	// Business services
	do.Provide(injector, providers.ProvideCategoryService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*ingest.Pipeline](injector)
	_ = do.MustInvoke[*artifacts.Writer](injector)
	_ = do.MustInvoke[*service.CategoryService](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
