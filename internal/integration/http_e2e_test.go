//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/elevityx/truckeelights/internal/adapters/blob"
	httpserver "github.com/elevityx/truckeelights/internal/adapters/http_server"
	"github.com/elevityx/truckeelights/internal/app"
	"github.com/elevityx/truckeelights/internal/auth"
	"github.com/elevityx/truckeelights/internal/domain"
	"github.com/elevityx/truckeelights/internal/imaging"
	mysqlrepo "github.com/elevityx/truckeelights/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

type stubGeo struct{}

func (stubGeo) Forward(ctx context.Context, address string) (domain.Location, string, error) {
	return domain.Location{Lat: 39.3277, Lng: -120.1833}, address, nil
}

func (stubGeo) Reverse(ctx context.Context, loc domain.Location) (string, error) {
	return "123 Main St, Truckee, CA", nil
}

func jpegBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	im := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			im.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 120, A: 255})
		}
	}
	var img bytes.Buffer
	if err := jpeg.Encode(&img, im, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		fw, err := mw.CreateFormFile("photos", name)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := fw.Write(img.Bytes()); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// ---------- the test ----------

func TestHTTP_EndToEnd_HouseLifecycle(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=truckee",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "truckee")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Apply the real migrations
	applyMigrations(t, db)

	// Full stack, local blob store, stub geocoder
	repo := mysqlrepo.New(db)
	blobs, err := blob.NewLocal(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	authSvc := auth.New("e2e-secret", "admin@example.com", hash)

	houses := app.NewHouseService(repo, nil, time.Minute)
	photos := app.NewPhotoService(repo, repo, blobs, imaging.New(imaging.DefaultConfig()), nil, time.Minute)
	moderation := app.NewModerationService(repo, repo, nil)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{
		Houses:     houses,
		Photos:     photos,
		Moderation: moderation,
		Geo:        stubGeo{},
		Blobs:      blobs,
		Auth:       authSvc,
		MaxUpload:  50 << 20,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Create a house
	res, err := http.Post(ts.URL+"/v1/houses", "application/json",
		strings.NewReader(`{"address":"123 Main St, Truckee, CA","lat":39.3277,"lng":-120.1833}`))
	if err != nil {
		t.Fatalf("POST house: %v", err)
	}
	var house domain.House
	if err := json.NewDecoder(res.Body).Decode(&house); err != nil {
		t.Fatalf("decode house: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusCreated || house.ID == "" {
		t.Fatalf("create house: status %d body %+v", res.StatusCode, house)
	}

	// Duplicate is a conflict end to end
	dup, err := http.Post(ts.URL+"/v1/houses", "application/json",
		strings.NewReader(`{"address":"  123 MAIN ST, Truckee, CA ","lat":39.3277,"lng":-120.1833}`))
	if err != nil {
		t.Fatalf("POST dup: %v", err)
	}
	dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", dup.StatusCode)
	}

	// Upload a photo
	body, ct := jpegBody(t, "front.jpg")
	up, err := http.Post(ts.URL+"/v1/houses/"+house.ID+"/photos", ct, body)
	if err != nil {
		t.Fatalf("POST photos: %v", err)
	}
	var upOut struct {
		Uploaded []domain.Photo `json:"uploaded"`
	}
	if err := json.NewDecoder(up.Body).Decode(&upOut); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	up.Body.Close()
	if up.StatusCode != http.StatusCreated || len(upOut.Uploaded) != 1 {
		t.Fatalf("upload: status %d body %+v", up.StatusCode, upOut)
	}

	// The stored object is served back
	media, err := http.Get(ts.URL + upOut.Uploaded[0].DownloadURL)
	if err != nil {
		t.Fatalf("GET media: %v", err)
	}
	media.Body.Close()
	if media.StatusCode != http.StatusOK {
		t.Fatalf("media: status %d", media.StatusCode)
	}

	// Admin approves it
	login, err := http.Post(ts.URL+"/v1/admin/login", "application/json",
		strings.NewReader(`{"email":"admin@example.com","password":"hunter22"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var tok struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(login.Body).Decode(&tok); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	login.Body.Close()
	if login.StatusCode != http.StatusOK || tok.Token == "" {
		t.Fatalf("login: status %d", login.StatusCode)
	}

	areq, _ := http.NewRequest(http.MethodPost,
		ts.URL+"/v1/admin/houses/"+house.ID+"/photos/"+upOut.Uploaded[0].ID+"/approve", nil)
	areq.Header.Set("Authorization", "Bearer "+tok.Token)
	ares, err := http.DefaultClient.Do(areq)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	ares.Body.Close()
	if ares.StatusCode != http.StatusNoContent {
		t.Fatalf("approve: status %d", ares.StatusCode)
	}

	// The public photo listing reflects the reviewed flag
	list, err := http.Get(ts.URL + "/v1/houses/" + house.ID + "/photos")
	if err != nil {
		t.Fatalf("GET photos: %v", err)
	}
	var got []domain.Photo
	if err := json.NewDecoder(list.Body).Decode(&got); err != nil {
		t.Fatalf("decode photos: %v", err)
	}
	list.Body.Close()
	if len(got) != 1 || !got[0].Reviewed {
		t.Fatalf("unexpected photo listing: %+v", got)
	}
}
