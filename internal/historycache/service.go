package historycache

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
)

// Service wraps a Cache with the starting/running/stopping lifecycle used
// elsewhere in this repository, so the cache can be managed by a module
// manager alongside everything else instead of needing bespoke wiring.
type Service struct {
	services.Service

	cache *Cache
}

// NewService builds a Service around cache.
func NewService(cache *Cache) *Service {
	s := &Service{cache: cache}
	s.Service = services.NewBasicService(s.starting, s.running, s.stopping)
	return s
}

// Cache exposes the wrapped cache for direct calls (GetRecordings et al).
func (s *Service) Cache() *Cache { return s.cache }

func (s *Service) starting(ctx context.Context) error {
	return s.cache.Start()
}

func (s *Service) running(ctx context.Context) error {
	level.Info(s.cache.logger).Log("msg", "history cache running")
	<-ctx.Done()
	return nil
}

func (s *Service) stopping(failureCase error) error {
	s.cache.Stop()
	s.cache.Close()
	return nil
}
