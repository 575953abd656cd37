// Package registry builds the configured upstream index providers.
package registry

import (
	"go.uber.org/zap"

	"github.com/DeZhao-Zhang/datacube-explorer/internal/config"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/domain"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/provider"
	"github.com/DeZhao-Zhang/datacube-explorer/internal/infra/provider/stacindex"
)

// NewProviders creates one STAC index client per configured upstream, in
// configuration order.
func NewProviders(cfg config.ProviderConfig, logger *zap.Logger) []domain.IndexProvider {
	providers := make([]domain.IndexProvider, 0, len(cfg.Upstreams))

	for _, u := range cfg.Upstreams {
		providers = append(providers, stacindex.New(stacindex.Config{
			Name: u.Name,
			Client: provider.ClientConfig{
				BaseURL: u.BaseURL,
				Timeout: u.Timeout,
				Retry: provider.RetryConfig{
					MaxAttempts: u.Retry.MaxAttempts,
					WaitTime:    u.Retry.WaitTime,
					MaxWaitTime: u.Retry.MaxWaitTime,
				},
				CB: provider.CBConfig{
					MaxRequests:  u.CB.MaxRequests,
					Interval:     u.CB.Interval,
					Timeout:      u.CB.Timeout,
					FailureRatio: u.CB.FailureRatio,
				},
			},
			PageSize: u.PageSize,
			MaxPages: u.MaxPages,
		}, logger))
	}

	return providers
}
