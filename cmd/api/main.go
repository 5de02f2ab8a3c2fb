package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"github.com/elevityx/truckeelights/internal/adapters/blob"
	"github.com/elevityx/truckeelights/internal/adapters/geocode"
	server "github.com/elevityx/truckeelights/internal/adapters/http_server"
	"github.com/elevityx/truckeelights/internal/adapters/observability"
	redisad "github.com/elevityx/truckeelights/internal/adapters/redis"
	"github.com/elevityx/truckeelights/internal/app"
	"github.com/elevityx/truckeelights/internal/auth"
	"github.com/elevityx/truckeelights/internal/imaging"
	"github.com/elevityx/truckeelights/internal/shared"
	mysqlrepo "github.com/elevityx/truckeelights/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	geo, err := geocode.New(cfg.GeocodeBase, cfg.GeocodeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoding client")
	}
	blobs, err := blob.NewLocal(cfg.BlobPath, cfg.MediaBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	houses := app.NewHouseService(repo, cache, cfg.CacheTTL)
	photos := app.NewPhotoService(repo, repo, blobs, imaging.New(imaging.DefaultConfig()), cache, cfg.CacheTTL)
	moderation := app.NewModerationService(repo, repo, cache)
	authSvc := auth.New(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassHash)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Houses:     houses,
		Photos:     photos,
		Moderation: moderation,
		Geo:        geo,
		Blobs:      blobs,
		Auth:       authSvc,
		MaxUpload:  cfg.MaxUploadBytes,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
