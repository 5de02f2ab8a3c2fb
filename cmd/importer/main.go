// Command importer bulk-loads addresses into the house registry: one address
// per line on stdin or in the file named by -file, each forward-geocoded and
// inserted. Duplicates and unresolvable addresses are logged and skipped.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"io"
	"os"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/elevityx/truckeelights/internal/adapters/geocode"
	"github.com/elevityx/truckeelights/internal/adapters/observability"
	redisad "github.com/elevityx/truckeelights/internal/adapters/redis"
	"github.com/elevityx/truckeelights/internal/app"
	"github.com/elevityx/truckeelights/internal/domain"
	"github.com/elevityx/truckeelights/internal/shared"
	mysqlrepo "github.com/elevityx/truckeelights/internal/storage/mysql"
)

func main() {
	file := flag.String("file", "", "address list, one per line (default stdin)")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.GeocodeBase).
		Int("workers", cfg.Workers).
		Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	houses := app.NewHouseService(repo, cache, cfg.CacheTTL)

	geo, err := geocode.New(cfg.GeocodeBase, cfg.GeocodeRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoding client")
	}

	addresses, err := readAddresses(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read address list")
	}
	log.Info().Int("count", len(addresses)).Msg("addresses loaded")

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, addr := range addresses {
		addr := addr

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, int64(1)); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			defer sem.Release(int64(1))

			loc, display, err := geo.Forward(ctx, address)
			if err != nil {
				log.Warn().Str("address", address).Err(err).Msg("geocode failed")
				return
			}
			if _, err := houses.Create(ctx, display, loc); err != nil {
				if errors.Is(err, domain.ErrDuplicateAddress) {
					log.Info().Str("address", display).Msg("already registered, skipped")
					return
				}
				log.Warn().Str("address", display).Err(err).Msg("import failed")
				return
			}
			log.Info().Str("address", display).Msg("import ok")
		}(addr)
	}

	wg.Wait()
	log.Info().Msg("import completed")
}

func readAddresses(file string) ([]string, error) {
	var r io.Reader = os.Stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
