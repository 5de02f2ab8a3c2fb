package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/elevityx/truckeelights/internal/app"
	"github.com/elevityx/truckeelights/internal/auth"
	"github.com/elevityx/truckeelights/internal/domain"
)

type Handlers struct {
	Houses     *app.HouseService
	Photos     *app.PhotoService
	Moderation *app.ModerationService
	Geo        domain.Geocoder
	Blobs      domain.BlobStore
	Auth       *auth.Service

	// MaxUpload caps the whole multipart body, not one file.
	MaxUpload int64
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/houses", h.listHouses)
	s.mux.Post("/v1/houses", h.createHouse)
	s.mux.Get("/v1/houses/{id}/photos", h.listPhotos)
	s.mux.Post("/v1/houses/{id}/photos", h.uploadPhotos)

	s.mux.Get("/v1/geocode", h.geocodeForward)
	s.mux.Get("/v1/geocode/reverse", h.geocodeReverse)

	s.mux.Post("/v1/admin/login", h.login)
	s.mux.Group(func(r chi.Router) {
		r.Use(RequireAdmin(h.Auth))
		r.Get("/v1/admin/photos", h.moderationBoard)
		r.Post("/v1/admin/houses/{houseID}/photos/{photoID}/approve", h.approvePhoto)
	})

	s.mux.Get("/media/*", h.serveMedia)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- houses ----

func (h *Handlers) listHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := h.Houses.ListAll(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Backend Error", "could not list houses")
		return
	}
	if houses == nil {
		houses = []domain.House{}
	}
	writeCached(w, r, houses)
}

type createHouseReq struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (h *Handlers) createHouse(w http.ResponseWriter, r *http.Request) {
	var req createHouseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "expected JSON with address, lat, lng")
		return
	}
	loc := domain.Location{Lat: req.Lat, Lng: req.Lng}
	if req.Address == "" || !loc.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid House", "address and a valid location are required")
		return
	}

	house, err := h.Houses.Create(r.Context(), req.Address, loc)
	switch {
	case errors.Is(err, domain.ErrDuplicateAddress):
		writeProblem(w, http.StatusConflict, "Duplicate Address", "that address is already registered")
		return
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Backend Error", "could not create house")
		return
	}
	writeJSON(w, http.StatusCreated, house)
}

// ---- photos ----

func (h *Handlers) listPhotos(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "id")
	if _, err := h.Houses.Get(r.Context(), houseID); err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "house not found")
		return
	}
	photos, err := h.Photos.List(r.Context(), houseID)
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Backend Error", "could not list photos")
		return
	}
	if photos == nil {
		photos = []domain.Photo{}
	}
	writeCached(w, r, photos)
}

type uploadResp struct {
	Uploaded []domain.Photo `json:"uploaded"`
	Failed   []uploadFail   `json:"failed,omitempty"`
}

type uploadFail struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// uploadPhotos accepts a multipart form with one or more files under the
// "photos" field. All succeeded is 201, some succeeded is 207, none is 502;
// completed uploads stand either way.
func (h *Handlers) uploadPhotos(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "id")
	if _, err := h.Houses.Get(r.Context(), houseID); err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "house not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "expected multipart form data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["photos"]
	if len(headers) == 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid Upload", "no files under the photos field")
		return
	}

	files := make([]app.FileUpload, 0, len(headers))
	opened := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, c := range opened {
			_ = c.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Upload", "could not read "+fh.Filename)
			return
		}
		opened = append(opened, f)
		files = append(files, app.FileUpload{Name: fh.Filename, Content: f})
	}

	res, err := h.Photos.UploadBatch(r.Context(), houseID, files)
	resp := uploadResp{Uploaded: res.Uploaded}
	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, uploadFail{Name: f.Name, Error: f.Err.Error()})
	}
	if resp.Uploaded == nil {
		resp.Uploaded = []domain.Photo{}
	}

	switch {
	case errors.Is(err, domain.ErrPartialUpload):
		writeJSON(w, http.StatusMultiStatus, resp)
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Upload Failed", "no file could be uploaded")
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

// ---- geocoding ----

type geocodeResp struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (h *Handlers) geocodeForward(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Query", "q is required")
		return
	}
	loc, display, err := h.Geo.Forward(r.Context(), q)
	switch {
	case errors.Is(err, domain.ErrNoResult):
		writeProblem(w, http.StatusNotFound, "No Result", "no location found for that address")
		return
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Geocoding Failed", "upstream geocoder unavailable")
		return
	}
	writeJSON(w, http.StatusOK, geocodeResp{Address: display, Lat: loc.Lat, Lng: loc.Lng})
}

func (h *Handlers) geocodeReverse(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	loc := domain.Location{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !loc.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid Coordinates", "lat and lng must be valid coordinates")
		return
	}
	address, err := h.Geo.Reverse(r.Context(), loc)
	switch {
	case errors.Is(err, domain.ErrNoResult):
		writeProblem(w, http.StatusNotFound, "No Result", "no address at that point")
		return
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Geocoding Failed", "upstream geocoder unavailable")
		return
	}
	writeJSON(w, http.StatusOK, geocodeResp{Address: address, Lat: loc.Lat, Lng: loc.Lng})
}

// ---- admin ----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "expected JSON with email and password")
		return
	}
	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// one answer for every bad credential
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handlers) moderationBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.Moderation.ListAll(r.Context())
	if err != nil {
		writeProblem(w, http.StatusBadGateway, "Backend Error", "could not load the moderation board")
		return
	}
	if board.Pending == nil {
		board.Pending = []domain.Photo{}
	}
	if board.Approved == nil {
		board.Approved = []domain.Photo{}
	}
	writeCached(w, r, board)
}

func (h *Handlers) approvePhoto(w http.ResponseWriter, r *http.Request) {
	houseID := chi.URLParam(r, "houseID")
	photoID := chi.URLParam(r, "photoID")
	err := h.Moderation.Approve(r.Context(), houseID, photoID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "photo not found")
		return
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Approve Failed", "could not record the approval")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- media ----

func (h *Handlers) serveMedia(w http.ResponseWriter, r *http.Request) {
	storagePath := chi.URLParam(r, "*")
	rc, contentType, err := h.Blobs.Open(r.Context(), storagePath)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "no such object")
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		log.Error().Err(err).Str("path", storagePath).Msg("failed to stream media object")
	}
}
