package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/alxsaunders/futuremove-shop/internal/config"
	"github.com/alxsaunders/futuremove-shop/internal/domain"
	"github.com/alxsaunders/futuremove-shop/internal/handler"
	"github.com/alxsaunders/futuremove-shop/internal/handler/mw"
	"github.com/alxsaunders/futuremove-shop/internal/repository"
	"github.com/alxsaunders/futuremove-shop/internal/server"
	"github.com/alxsaunders/futuremove-shop/internal/usecase"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	repo, err := repository.NewPostgresRepo(cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init repository")
	}
	if err := repo.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	if err := repo.SeedCatalog(context.Background(), domain.DefaultCatalog); err != nil {
		log.Fatal().Err(err).Msg("failed to seed catalog")
	}

	mw.SetSecretKey([]byte(cfg.JWTSecret))

	svc := usecase.NewService(repo, log)
	h := handler.NewHandler(svc)
	r := server.NewRouter(h, log)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	server.StartHTTPServer(srv, log)
}
