package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elevityx/truckeelights/internal/adapters/observability"
	"github.com/elevityx/truckeelights/internal/domain"
	"github.com/elevityx/truckeelights/internal/imaging"
)

// normalizer is the subset of imaging.Normalizer that PhotoService requires.
type normalizer interface {
	Normalize(fileName string, r io.Reader) (*imaging.Normalized, error)
}

func photosCacheKey(houseID string) string { return fmt.Sprintf("photos:%s", houseID) }

// PhotoService implements the photo store adapter: normalize, write bytes to
// object storage under the house's photos prefix, record metadata in the
// house's photo log.
type PhotoService struct {
	houses   domain.HouseRepository
	photos   domain.PhotoRepository
	blobs    domain.BlobStore
	norm     normalizer
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewPhotoService(
	houses domain.HouseRepository,
	photos domain.PhotoRepository,
	blobs domain.BlobStore,
	norm normalizer,
	cache domain.Cache,
	ttl time.Duration,
) *PhotoService {
	return &PhotoService{houses: houses, photos: photos, blobs: blobs, norm: norm, cache: cache, cacheTTL: ttl}
}

// Upload processes a single file end to end. The storage object name gets a
// nanosecond prefix so identically named files from different uploads never
// collide under one house.
func (s *PhotoService) Upload(ctx context.Context, houseID, fileName string, r io.Reader) (domain.Photo, error) {
	if _, err := s.houses.GetHouse(ctx, houseID); err != nil {
		return domain.Photo{}, err
	}

	n, err := s.norm.Normalize(fileName, r)
	if err != nil {
		observability.ObserveUpload("normalize_failed")
		return domain.Photo{}, err
	}

	storagePath := fmt.Sprintf("houses/%s/photos/%d_%s", houseID, time.Now().UnixNano(), n.FileName)
	url, err := s.blobs.Put(ctx, storagePath, n.ContentType, bytes.NewReader(n.Data))
	if err != nil {
		observability.ObserveUpload("store_failed")
		return domain.Photo{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	p, err := s.photos.InsertPhoto(ctx, domain.Photo{
		HouseID:     houseID,
		DownloadURL: url,
		StoragePath: storagePath,
		FileName:    n.FileName,
	})
	if err != nil {
		// compensating delete; the blob alone is useless without its record
		if derr := s.blobs.Delete(ctx, storagePath); derr != nil {
			log.Error().Err(derr).Str("path", storagePath).Msg("orphaned blob after failed photo insert")
		}
		observability.ObserveUpload("store_failed")
		return domain.Photo{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, photosCacheKey(houseID))
	}
	observability.ObserveUpload("ok")
	return p, nil
}

// FileUpload is one member of a batch.
type FileUpload struct {
	Name    string
	Content io.Reader
}

type UploadFailure struct {
	Name string
	Err  error
}

// BatchResult distinguishes "all succeeded" from "some succeeded": completed
// uploads are never rolled back when a sibling fails.
type BatchResult struct {
	Uploaded []domain.Photo
	Failed   []UploadFailure
}

// UploadBatch runs all uploads concurrently and waits for every one of them.
// Completion order across files is undefined. Returns ErrUploadFailed when
// nothing succeeded and ErrPartialUpload when only some did.
func (s *PhotoService) UploadBatch(ctx context.Context, houseID string, files []FileUpload) (BatchResult, error) {
	if len(files) == 0 {
		return BatchResult{}, nil
	}

	type slot struct {
		photo domain.Photo
		err   error
	}
	slots := make([]slot, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f FileUpload) {
			defer wg.Done()
			p, err := s.Upload(ctx, houseID, f.Name, f.Content)
			slots[i] = slot{photo: p, err: err}
		}(i, f)
	}
	wg.Wait()

	var res BatchResult
	for i, sl := range slots {
		if sl.err != nil {
			log.Warn().Err(sl.err).Str("house", houseID).Str("file", files[i].Name).Msg("upload failed")
			res.Failed = append(res.Failed, UploadFailure{Name: files[i].Name, Err: sl.err})
			continue
		}
		res.Uploaded = append(res.Uploaded, sl.photo)
	}

	switch {
	case len(res.Uploaded) == 0:
		return res, domain.ErrUploadFailed
	case len(res.Failed) > 0:
		return res, domain.ErrPartialUpload
	default:
		return res, nil
	}
}

// List returns the house's photos, newest first, cache-aside.
func (s *PhotoService) List(ctx context.Context, houseID string) ([]domain.Photo, error) {
	key := photosCacheKey(houseID)
	var cached []domain.Photo
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	photos, err := s.photos.ListPhotos(ctx, houseID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		cp := make([]domain.Photo, len(photos))
		copy(cp, photos)
		_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
	}
	return photos, nil
}
