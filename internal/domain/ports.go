package domain

import (
	"context"
	"io"
)

type HouseRepository interface {
	// Write path
	CreateHouse(ctx context.Context, h House) (House, error)

	// Read paths
	GetHouse(ctx context.Context, id string) (House, error)
	ExistsNormalized(ctx context.Context, normalized string) (bool, error)
	ListHouses(ctx context.Context) ([]House, error) // created-at descending
}

type PhotoRepository interface {
	InsertPhoto(ctx context.Context, p Photo) (Photo, error)
	ListPhotos(ctx context.Context, houseID string) ([]Photo, error) // newest first
	ApprovePhoto(ctx context.Context, houseID, photoID string) error
}

// Geocoder resolves addresses both ways against the mapping provider.
// Forward returns the location plus the provider's display address.
type Geocoder interface {
	Forward(ctx context.Context, address string) (Location, string, error)
	Reverse(ctx context.Context, loc Location) (string, error)
}

// BlobStore is the object-storage collaborator. Put returns the durable
// download URL for the stored object.
type BlobStore interface {
	Put(ctx context.Context, path, contentType string, r io.Reader) (url string, err error)
	Open(ctx context.Context, path string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, path string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
