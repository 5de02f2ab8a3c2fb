// Package presenter owns the client-side map state: the marker table, the
// single reusable popup, and the photo gallery/upload/overlay states. It is
// the one place allowed to touch the map widget; everything else goes through
// the registry and photo services.
package presenter

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/elevityx/truckeelights/internal/app"
	"github.com/elevityx/truckeelights/internal/domain"
)

type PopupKind int

const (
	PopupNone PopupKind = iota
	PopupAddPrompt
	PopupHouseInfo
)

// Marker is a handle to one on-map marker, owned exclusively by the Presenter.
type Marker interface {
	Remove()
}

// MapView is the rendering port over the mapping provider's widget. One popup
// instance backs both Show* calls; showing either closes the other.
type MapView interface {
	PlaceMarker(houseID string, loc domain.Location) (Marker, error)
	PanTo(loc domain.Location)
	SetZoom(level int)
	Zoom() int
	ShowAddPrompt(address string, loc domain.Location)
	ShowHouseInfo(house domain.House, photos []domain.Photo, uploading bool)
	ShowOverlay(url string)
	HideOverlay()
	ClosePopup()
	Notify(msg string)
}

type housesAPI interface {
	Create(ctx context.Context, address string, loc domain.Location) (domain.House, error)
	ListAll(ctx context.Context) ([]domain.House, error)
}

type photosAPI interface {
	List(ctx context.Context, houseID string) ([]domain.Photo, error)
	UploadBatch(ctx context.Context, houseID string, files []app.FileUpload) (app.BatchResult, error)
}

type draft struct {
	address string
	loc     domain.Location
}

type Presenter struct {
	mu     sync.Mutex
	view   MapView
	houses housesAPI
	photos photosAPI
	geo    domain.Geocoder
	log    zerolog.Logger
	opts   Options

	markers    map[string]Marker
	popup      PopupKind
	prompt     *draft
	current    *domain.House
	gallery    []domain.Photo
	uploading  bool
	overlayURL string

	zoomCancel chan struct{}
}

func New(view MapView, houses housesAPI, photos photosAPI, geo domain.Geocoder, log zerolog.Logger, opts Options) *Presenter {
	opts = opts.withDefaults()
	return &Presenter{
		view:    view,
		houses:  houses,
		photos:  photos,
		geo:     geo,
		log:     log,
		opts:    opts,
		markers: map[string]Marker{},
	}
}

// SyncMarkers discards every current marker and recreates the set from the
// given houses. No diffing: house counts are small and wholesale rebuild
// cannot leak stale markers. Houses without usable coordinates are skipped
// and logged, never fatal.
func (p *Presenter) SyncMarkers(houses []domain.House) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncMarkersLocked(houses)
}

func (p *Presenter) syncMarkersLocked(houses []domain.House) {
	for id, m := range p.markers {
		m.Remove()
		delete(p.markers, id)
	}
	for _, h := range houses {
		if !h.Location.Valid() {
			p.log.Warn().Str("house", h.ID).Str("address", h.Address).Msg("house missing valid coordinates, marker skipped")
			continue
		}
		m, err := p.view.PlaceMarker(h.ID, h.Location)
		if err != nil {
			p.log.Error().Err(err).Str("house", h.ID).Msg("place marker failed")
			continue
		}
		p.markers[h.ID] = m
	}
}

// Refresh reloads the house list and rebuilds markers. A fetch failure
// degrades to an empty map plus a notification; the presenter stays usable.
func (p *Presenter) Refresh(ctx context.Context) {
	houses, err := p.houses.ListAll(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("list houses failed")
		p.view.Notify("Could not load houses.")
		houses = nil
	}
	p.SyncMarkers(houses)
}

// ClickMap handles a click on empty map space. An open AddPrompt toggles
// closed; otherwise the point is reverse-geocoded and offered as a new house.
func (p *Presenter) ClickMap(ctx context.Context, loc domain.Location) {
	p.mu.Lock()
	if p.popup == PopupAddPrompt {
		p.closePopupLocked()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// geocoding happens outside the lock; other events may interleave
	address, err := p.geo.Reverse(ctx, loc)
	if err != nil {
		if errors.Is(err, domain.ErrNoResult) {
			p.view.Notify("No address found at that point.")
		} else {
			p.view.Notify("Address lookup failed.")
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closePopupLocked()
	p.prompt = &draft{address: address, loc: loc}
	p.popup = PopupAddPrompt
	p.view.ShowAddPrompt(address, loc)
}

// ConfirmAdd persists the prompted address and re-renders the marker set.
func (p *Presenter) ConfirmAdd(ctx context.Context) {
	p.mu.Lock()
	if p.popup != PopupAddPrompt || p.prompt == nil {
		p.mu.Unlock()
		return
	}
	d := *p.prompt
	p.closePopupLocked()
	p.mu.Unlock()

	if _, err := p.houses.Create(ctx, d.address, d.loc); err != nil {
		if errors.Is(err, domain.ErrDuplicateAddress) {
			p.view.Notify("That house is already on the map.")
		} else {
			p.view.Notify("Could not add the house.")
		}
		return
	}
	p.Refresh(ctx)
}

// DismissPrompt closes an open AddPrompt without creating anything.
func (p *Presenter) DismissPrompt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.popup == PopupAddPrompt {
		p.closePopupLocked()
	}
}

// ClickMarker opens the house's gallery popup. Any open popup closes first;
// a failed photo fetch degrades to an empty gallery.
func (p *Presenter) ClickMarker(ctx context.Context, house domain.House) {
	photos, err := p.photos.List(ctx, house.ID)
	if err != nil {
		p.log.Error().Err(err).Str("house", house.ID).Msg("list photos failed")
		p.view.Notify("Could not load photos.")
		photos = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closePopupLocked()
	h := house
	p.current = &h
	p.gallery = photos
	p.popup = PopupHouseInfo
	p.view.ShowHouseInfo(h, photos, false)
}

// Select reacts to an externally chosen house (e.g. a search result): pan and
// zoom to it, then treat it as a marker click when persisted or as a
// prefilled add prompt when still a draft.
func (p *Presenter) Select(ctx context.Context, house domain.House) {
	p.view.PanTo(house.Location)
	p.smoothZoomTo(p.opts.CloseUpZoom)

	if !house.Draft() {
		p.ClickMarker(ctx, house)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closePopupLocked()
	p.prompt = &draft{address: house.Address, loc: house.Location}
	p.popup = PopupAddPrompt
	p.view.ShowAddPrompt(house.Address, house.Location)
}

// Upload sends the chosen files to the open house's photo log and re-renders
// the gallery in place. Uploads are never cancelled: if the popup moved on
// while they ran, the results are only dropped from view.
func (p *Presenter) Upload(ctx context.Context, files []app.FileUpload) {
	p.mu.Lock()
	if p.popup != PopupHouseInfo || p.current == nil || p.uploading {
		p.mu.Unlock()
		return
	}
	house := *p.current
	p.uploading = true
	p.view.ShowHouseInfo(house, p.gallery, true)
	p.mu.Unlock()

	_, err := p.photos.UploadBatch(ctx, house.ID, files)
	switch {
	case errors.Is(err, domain.ErrPartialUpload):
		p.view.Notify("Some photos could not be uploaded.")
	case errors.Is(err, domain.ErrUploadFailed):
		p.view.Notify("Photo upload failed.")
	case err != nil:
		p.view.Notify("Photo upload failed.")
	}

	photos, lerr := p.photos.List(ctx, house.ID)
	if lerr != nil {
		p.log.Error().Err(lerr).Str("house", house.ID).Msg("gallery refresh failed")
		photos = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploading = false
	if p.popup != PopupHouseInfo || p.current == nil || p.current.ID != house.ID {
		// popup moved on mid-upload; results stay persisted, just not shown
		return
	}
	p.gallery = photos
	p.view.ShowHouseInfo(house, photos, false)
}

// ShowOverlay opens the full-size photo overlay for a gallery thumbnail.
func (p *Presenter) ShowOverlay(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.popup != PopupHouseInfo {
		return
	}
	p.overlayURL = url
	p.view.ShowOverlay(url)
}

// DismissOverlay closes the overlay (clicking it anywhere dismisses).
func (p *Presenter) DismissOverlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overlayURL == "" {
		return
	}
	p.overlayURL = ""
	p.view.HideOverlay()
}

// closePopupLocked enforces the single-popup discipline: whatever is open
// goes away, along with popup-scoped state.
func (p *Presenter) closePopupLocked() {
	if p.overlayURL != "" {
		p.overlayURL = ""
		p.view.HideOverlay()
	}
	if p.popup != PopupNone {
		p.view.ClosePopup()
	}
	p.popup = PopupNone
	p.prompt = nil
	p.current = nil
	p.gallery = nil
}

// ---- state accessors ----

func (p *Presenter) Popup() PopupKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popup
}

func (p *Presenter) MarkerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.markers))
	for id := range p.markers {
		ids = append(ids, id)
	}
	return ids
}

func (p *Presenter) Uploading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploading
}

func (p *Presenter) OverlayURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlayURL
}

func (p *Presenter) Gallery() []domain.Photo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Photo, len(p.gallery))
	copy(out, p.gallery)
	return out
}
