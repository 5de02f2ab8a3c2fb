package app

import (
	"context"
	"fmt"
	"time"

	"github.com/elevityx/truckeelights/internal/domain"
)

const housesCacheKey = "houses:all"

// HouseService is the house registry: one persisted House per normalized
// address, listed newest first.
type HouseService struct {
	repo     domain.HouseRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewHouseService(r domain.HouseRepository, c domain.Cache, ttl time.Duration) *HouseService {
	return &HouseService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *HouseService) Exists(ctx context.Context, normalized string) (bool, error) {
	return s.repo.ExistsNormalized(ctx, normalized)
}

// Create persists a confirmed address. The Exists pre-check gives the common
// case a friendly answer; the storage unique key decides the race.
func (s *HouseService) Create(ctx context.Context, address string, loc domain.Location) (domain.House, error) {
	norm := domain.NormalizeAddress(address)
	if norm == "" {
		return domain.House{}, fmt.Errorf("empty address")
	}
	if !loc.Valid() {
		return domain.House{}, fmt.Errorf("invalid location %.6f,%.6f", loc.Lat, loc.Lng)
	}

	exists, err := s.repo.ExistsNormalized(ctx, norm)
	if err != nil {
		return domain.House{}, err
	}
	if exists {
		return domain.House{}, domain.ErrDuplicateAddress
	}

	h, err := s.repo.CreateHouse(ctx, domain.House{
		Address:           address,
		NormalizedAddress: norm,
		Location:          loc,
	})
	if err != nil {
		return domain.House{}, err
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, housesCacheKey)
	}
	return h, nil
}

func (s *HouseService) Get(ctx context.Context, id string) (domain.House, error) {
	return s.repo.GetHouse(ctx, id)
}

// ListAll returns all houses, created-at descending, cache-aside.
func (s *HouseService) ListAll(ctx context.Context) ([]domain.House, error) {
	var cached []domain.House
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, housesCacheKey, &cached); ok {
			return cached, nil
		}
	}

	houses, err := s.repo.ListHouses(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		// copy slice to avoid aliasing the repo's backing array
		cp := make([]domain.House, len(houses))
		copy(cp, houses)
		_ = s.cache.Set(ctx, housesCacheKey, cp, int(s.cacheTTL.Seconds()))
	}
	return houses, nil
}
