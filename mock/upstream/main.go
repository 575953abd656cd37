// Command upstream serves the deterministic fixture as an upstream STAC
// index, for exercising ingest locally. Point a provider at it with:
//
//	provider:
//	  upstreams:
//	    - name: fixture
//	      base_url: http://localhost:8081/stac
package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/app/service"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/memory"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/search"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/stac"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/transport/httpserver"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/validator"
)

const (
	defaultPort = 8081
	// maxPageSize covers the page size ingest clients ask for by default.
	maxPageSize = 1000
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	baseURL := os.Getenv("MOCK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}

	store := memory.NewStore()
	if err := memory.SeedFixture(context.Background(), store); err != nil {
		logger.Fatal("failed to seed fixture", zap.Error(err))
	}

	resolver := search.NewResolver(store, search.ResolverConfig{DefaultLimit: 100, MaxLimit: maxPageSize})
	codec, err := search.NewCursorCodec("", 0)
	if err != nil {
		logger.Fatal("failed to create cursor codec", zap.Error(err))
	}

	links := stac.NewLinks(baseURL)
	searchSvc := service.NewSearchService(
		store,
		store,
		resolver,
		search.NewPaginator(store, codec, resolver, nil, logger),
		stac.NewFormatter(links, logger),
		links,
		service.NewSummaryService(store, nil, 0, nil, logger),
		service.CatalogInfo{Title: "Mock upstream", Description: "Fixture datasets"},
		logger,
	)
	overviewSvc := service.NewOverviewService(store, store, nil, service.OverviewConfig{}, logger)
	syncSvc := service.NewSyncService(store, nil, logger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{BodyLimit: 1024 * 1024, BaseURL: baseURL},
		searchSvc,
		overviewSvc,
		syncSvc,
		store,
		validator.New(),
		nil,
		logger,
	)

	logger.Info("mock upstream index running",
		zap.String("base_url", baseURL+"/stac"),
		zap.Int("datasets", store.Len()),
	)
	if err := server.Start(defaultPort); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
