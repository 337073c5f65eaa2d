package catalog

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service is the catalog read/write path. Reads go through the optional
// cache; every write evicts the cached copy so pricing sees the new price on
// the next lookup.
type Service struct {
	repo   Repository
	cache  Cache
	logger *zap.Logger
	sfg    singleflight.Group

	// writes counts catalog writes per product. A read that overlapped a
	// write must not leave its row in the cache.
	mu     sync.Mutex
	writes map[string]uint64
}

// NewService builds a Service. cache may be nil.
func NewService(repo Repository, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, logger: logger, writes: map[string]uint64{}}
}

func (s *Service) Get(ctx context.Context, productID string) (Product, error) {
	if s.cache == nil {
		return s.repo.Get(ctx, productID)
	}

	v, err, _ := s.sfg.Do(productID, func() (any, error) {
		// shared by every waiter, so one caller going away must not fail the rest
		ctx := context.WithoutCancel(ctx)

		p, err := s.cache.Get(ctx, productID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("catalog cache get failed", zap.String("product_id", productID), zap.Error(err))
		}

		gen := s.generation(productID)
		p, err = s.repo.Get(ctx, productID)
		if err != nil {
			return Product{}, err
		}

		if err := s.cache.Set(ctx, p); err != nil {
			s.logger.Warn("catalog cache set failed", zap.String("product_id", productID), zap.Error(err))
		}
		if s.generation(productID) != gen {
			s.logger.Debug("catalog write raced a cache fill", zap.String("product_id", productID))
			s.dropCached(ctx, productID)
		}
		return p, nil
	})
	if err != nil {
		return Product{}, err
	}
	return v.(Product), nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Save(ctx context.Context, p *Product) error {
	if err := s.repo.Upsert(ctx, p); err != nil {
		return err
	}
	s.evict(ctx, p.ID)
	return nil
}

func (s *Service) Delete(ctx context.Context, productID string) error {
	if err := s.repo.Delete(ctx, productID); err != nil {
		return err
	}
	s.evict(ctx, productID)
	return nil
}

func (s *Service) generation(productID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[productID]
}

// evict drops the cached copy after a write. The generation bump comes first
// so a concurrent fill either sees it or is overwritten by the delete.
func (s *Service) evict(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	s.writes[productID]++
	s.mu.Unlock()
	s.dropCached(ctx, productID)
}

func (s *Service) dropCached(ctx context.Context, productID string) {
	if err := s.cache.Delete(ctx, productID); err != nil {
		s.logger.Warn("catalog cache evict failed", zap.String("product_id", productID), zap.Error(err))
	}
}
