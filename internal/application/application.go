// Package application assembles the import service from configuration.
// The server and the CLI share it so both run the same store, keyword
// table, archive and event stream.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/ticketimport/internal/archive"
	"github.com/JonMunkholm/ticketimport/internal/classify"
	"github.com/JonMunkholm/ticketimport/internal/config"
	"github.com/JonMunkholm/ticketimport/internal/core"
	"github.com/JonMunkholm/ticketimport/internal/events"
	"github.com/JonMunkholm/ticketimport/internal/store"
)

// App holds a ready Service and the resources behind it.
type App struct {
	Config  *config.Config
	Service *core.Service

	closers []func() error
}

// Build opens every configured collaborator. On error, whatever was
// already opened is closed again.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	st, err := store.Open(ctx, store.OpenOptions{
		Driver:     cfg.Database.Driver,
		URL:        cfg.Database.URL,
		SQLitePath: cfg.Database.SQLitePath,
		Pool: store.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.closers = append(app.closers, st.Close)
	slog.Info("ticket store ready", "driver", cfg.Database.Driver)

	table := classify.DefaultTable()
	if cfg.Classifier.KeywordsFile != "" {
		table, err = classify.LoadTable(cfg.Classifier.KeywordsFile)
		if err != nil {
			return nil, fmt.Errorf("load keyword table: %w", err)
		}
		slog.Info("keyword table loaded", "file", cfg.Classifier.KeywordsFile)
	}

	var archiver archive.Archiver = archive.Noop{}
	if cfg.Archive.Enabled() {
		s3a, err := archive.NewS3Archiver(ctx, archive.S3Options{
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			Prefix:    cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		archiver = s3a
		slog.Info("raw file archive enabled", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.Events.Enabled() {
		rp, err := events.NewRedisPublisher(cfg.Events.RedisAddr, cfg.Events.Stream)
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		app.closers = append(app.closers, rp.Close)
		publisher = rp
		slog.Info("import events enabled", "stream", rp.Stream())
	}

	policy, err := core.ParseEnumPolicy(cfg.Import.EnumPolicy)
	if err != nil {
		return nil, err
	}

	svc, err := core.NewService(core.ServiceConfig{
		Store:        st,
		Classifier:   classify.New(table),
		Archiver:     archiver,
		Publisher:    publisher,
		Limiter:      core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		EnumPolicy:   policy,
		MaxFileSize:  cfg.Import.MaxFileSize,
		StoreTimeout: cfg.Import.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	app.Service = svc
	return app, nil
}

// Close releases the store and the event stream connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
