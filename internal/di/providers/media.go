package providers

import (
	"github.com/samber/do/v2"

	"github.com/cookbookapp/cookbook-server/internal/config"
	"github.com/cookbookapp/cookbook-server/internal/logger"
	"github.com/cookbookapp/cookbook-server/internal/media/artifacts"
	"github.com/cookbookapp/cookbook-server/internal/media/ingest"
	"github.com/cookbookapp/cookbook-server/internal/ratelimit"
)

// fetchBurst allows short bursts of image fetches against a single host
// before the per-host rate kicks in.
const fetchBurst = 4

// ProvideFetchLimiter provides the per-host rate limiter for outbound image fetches.
func ProvideFetchLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return ratelimit.New(cfg.Ingest.FetchRate, fetchBurst), nil
}

// ProvideIngestPipeline provides the image ingestion pipeline.
func ProvideIngestPipeline(i do.Injector) (*ingest.Pipeline, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	pipeline := ingest.New(ingest.Config{
		Quality:            cfg.Ingest.Quality,
		InsecureSkipVerify: cfg.Ingest.InsecureSkipVerify,
	}, limiter, log.Logger)

	if cfg.Ingest.InsecureSkipVerify {
		log.Warn("TLS verification disabled for image fetches")
	}

	return pipeline, nil
}

// ProvideArtifactWriter provides the category folder and artifact writer.
func ProvideArtifactWriter(i do.Injector) (*artifacts.Writer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	writer := artifacts.NewWriter(cfg.Categories.BasePath, log.Logger)

	log.Info("Artifact writer ready", "base_path", cfg.Categories.BasePath)

	return writer, nil
}
