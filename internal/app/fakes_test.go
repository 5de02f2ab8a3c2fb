package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/elevityx/truckeelights/internal/domain"
	"github.com/elevityx/truckeelights/internal/imaging"
)

// ---- fakes ----

type fakeRepo struct {
	mu     sync.Mutex
	houses []domain.House
	photos map[string][]domain.Photo // houseID -> photos, newest first

	listHouseCalls int
	listPhotoCalls int

	insertPhotoErr error
	approveErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{photos: map[string][]domain.Photo{}}
}

func (f *fakeRepo) CreateHouse(ctx context.Context, h domain.House) (domain.House, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.houses {
		if e.NormalizedAddress == h.NormalizedAddress {
			return domain.House{}, domain.ErrDuplicateAddress
		}
	}
	h.ID = fmt.Sprintf("house-%d", len(f.houses)+1)
	h.CreatedAt = time.Now().Add(time.Duration(len(f.houses)) * time.Second)
	// prepend: listing is created-at descending
	f.houses = append([]domain.House{h}, f.houses...)
	return h, nil
}

func (f *fakeRepo) GetHouse(ctx context.Context, id string) (domain.House, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.houses {
		if h.ID == id {
			return h, nil
		}
	}
	return domain.House{}, domain.ErrNotFound
}

func (f *fakeRepo) ExistsNormalized(ctx context.Context, normalized string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.houses {
		if h.NormalizedAddress == normalized {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListHouses(ctx context.Context) ([]domain.House, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHouseCalls++
	out := make([]domain.House, len(f.houses))
	copy(out, f.houses)
	return out, nil
}

func (f *fakeRepo) InsertPhoto(ctx context.Context, p domain.Photo) (domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertPhotoErr != nil {
		return domain.Photo{}, f.insertPhotoErr
	}
	p.ID = fmt.Sprintf("photo-%d", len(f.photos[p.HouseID])+1)
	p.UploadedAt = time.Now()
	f.photos[p.HouseID] = append([]domain.Photo{p}, f.photos[p.HouseID]...)
	return p, nil
}

func (f *fakeRepo) ListPhotos(ctx context.Context, houseID string) ([]domain.Photo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPhotoCalls++
	out := make([]domain.Photo, len(f.photos[houseID]))
	copy(out, f.photos[houseID])
	return out, nil
}

func (f *fakeRepo) ApprovePhoto(ctx context.Context, houseID, photoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return f.approveErr
	}
	for i, p := range f.photos[houseID] {
		if p.ID == photoID {
			f.photos[houseID][i].Reviewed = true
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	gets  int
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.store == nil {
		return false, nil
	}
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deletes []string
}

func newFakeBlob() *fakeBlob { return &fakeBlob{objects: map[string][]byte{}} }

func (b *fakeBlob) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return "", b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.objects[path] = data
	return "/media/" + path, nil
}

func (b *fakeBlob) Open(ctx context.Context, path string) (io.ReadCloser, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (b *fakeBlob) Delete(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, path)
	b.deletes = append(b.deletes, path)
	return nil
}

// fakeNormalizer passes bytes through; file names containing "corrupt" fail
// the way a real decode failure would.
type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(fileName string, r io.Reader) (*imaging.Normalized, error) {
	if strings.Contains(fileName, "corrupt") {
		return nil, domain.ErrNormalization
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &imaging.Normalized{FileName: fileName, ContentType: "image/jpeg", Data: data}, nil
}
