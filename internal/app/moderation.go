package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/elevityx/truckeelights/internal/domain"
)

// moderationFanout caps concurrent per-house photo reads during board loads.
const moderationFanout = 8

// Board is the moderation view: every photo across every house, partitioned
// by the reviewed flag.
type Board struct {
	Pending  []domain.Photo `json:"pending"`
	Approved []domain.Photo `json:"approved"`
}

type ModerationService struct {
	houses domain.HouseRepository
	photos domain.PhotoRepository
	cache  domain.Cache
}

func NewModerationService(houses domain.HouseRepository, photos domain.PhotoRepository, cache domain.Cache) *ModerationService {
	return &ModerationService{houses: houses, photos: photos, cache: cache}
}

// ListAll fetches every house, fans out one photo listing per house, and
// flattens the result. House order (created-at descending) is preserved in
// the flattened sequence regardless of fetch completion order.
func (s *ModerationService) ListAll(ctx context.Context) (Board, error) {
	houses, err := s.houses.ListHouses(ctx)
	if err != nil {
		return Board{}, err
	}

	perHouse := make([][]domain.Photo, len(houses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(moderationFanout)
	for i, h := range houses {
		i, h := i, h
		g.Go(func() error {
			ps, err := s.photos.ListPhotos(gctx, h.ID)
			if err != nil {
				return fmt.Errorf("list photos for house %s: %w", h.ID, err)
			}
			perHouse[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Board{}, err
	}

	var board Board
	for _, ps := range perHouse {
		for _, p := range ps {
			if p.Reviewed {
				board.Approved = append(board.Approved, p)
			} else {
				board.Pending = append(board.Pending, p)
			}
		}
	}
	return board, nil
}

// Approve sets reviewed=true on the target photo. One-way and idempotent:
// approving an approved photo succeeds without effect.
func (s *ModerationService) Approve(ctx context.Context, houseID, photoID string) error {
	if err := s.photos.ApprovePhoto(ctx, houseID, photoID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrApproveFailed, err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, photosCacheKey(houseID))
	}
	return nil
}
