//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/elevityx/truckeelights/internal/domain"
	mysqlrepo "github.com/elevityx/truckeelights/internal/storage/mysql"
)

// ---------- small helpers ----------

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

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()

	// Start isolated MySQL; let Docker pick a free host port.
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

	applyMigrations(t, db)
	return db
}

// ---------- the test ----------

func TestRepo_MySQL_HousesAndPhotos(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	// Arrange — two houses, created in order
	first, err := repo.CreateHouse(ctx, domain.House{
		Address:           "456 River Rd, Truckee, CA",
		NormalizedAddress: "456 river rd, truckee, ca",
		Location:          domain.Location{Lat: 39.33, Lng: -120.19},
	})
	if err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}
	// created_at has second resolution; ensure distinct ordering keys
	time.Sleep(1100 * time.Millisecond)
	second, err := repo.CreateHouse(ctx, domain.House{
		Address:           "123 Main St, Truckee, CA",
		NormalizedAddress: "123 main st, truckee, ca",
		Location:          domain.Location{Lat: 39.3277, Lng: -120.1833},
	})
	if err != nil {
		t.Fatalf("CreateHouse: %v", err)
	}

	// the unique key decides the duplicate race, not just the pre-check
	_, err = repo.CreateHouse(ctx, domain.House{
		Address:           "123 MAIN ST, Truckee, CA",
		NormalizedAddress: "123 main st, truckee, ca",
		Location:          domain.Location{Lat: 39.3277, Lng: -120.1833},
	})
	if !errors.Is(err, domain.ErrDuplicateAddress) {
		t.Fatalf("expected ErrDuplicateAddress from unique key, got %v", err)
	}

	exists, err := repo.ExistsNormalized(ctx, "123 main st, truckee, ca")
	if err != nil || !exists {
		t.Fatalf("ExistsNormalized: %v %v", exists, err)
	}

	houses, err := repo.ListHouses(ctx)
	if err != nil {
		t.Fatalf("ListHouses: %v", err)
	}
	if len(houses) != 2 || houses[0].ID != second.ID || houses[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", houses)
	}

	// photos
	p1, err := repo.InsertPhoto(ctx, domain.Photo{
		HouseID:     second.ID,
		DownloadURL: "/media/houses/x/photos/1_a.jpg",
		StoragePath: "houses/x/photos/1_a.jpg",
		FileName:    "a.jpg",
	})
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	p2, err := repo.InsertPhoto(ctx, domain.Photo{
		HouseID:     second.ID,
		DownloadURL: "/media/houses/x/photos/2_b.jpg",
		StoragePath: "houses/x/photos/2_b.jpg",
		FileName:    "b.jpg",
	})
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	photos, err := repo.ListPhotos(ctx, second.ID)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	if len(photos) != 2 || photos[0].ID != p2.ID || photos[1].ID != p1.ID {
		t.Fatalf("expected newest first, got %+v", photos)
	}
	if photos[0].Reviewed || photos[1].Reviewed {
		t.Fatalf("new photos must start unreviewed: %+v", photos)
	}

	// approve is one-way and idempotent
	if err := repo.ApprovePhoto(ctx, second.ID, p1.ID); err != nil {
		t.Fatalf("ApprovePhoto: %v", err)
	}
	if err := repo.ApprovePhoto(ctx, second.ID, p1.ID); err != nil {
		t.Fatalf("re-approve should be a no-op, got %v", err)
	}
	if err := repo.ApprovePhoto(ctx, second.ID, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	photos, err = repo.ListPhotos(ctx, second.ID)
	if err != nil {
		t.Fatalf("ListPhotos: %v", err)
	}
	var approved int
	for _, p := range photos {
		if p.Reviewed {
			approved++
		}
	}
	if approved != 1 {
		t.Fatalf("expected exactly one approved photo, got %d", approved)
	}
}
