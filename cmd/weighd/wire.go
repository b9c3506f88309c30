package main

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/batch-weighing/internal/bot"
	"github.com/Spok95/batch-weighing/internal/config"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/packaging"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/backup"
	"github.com/Spok95/batch-weighing/internal/infra/blob"
	blobfs "github.com/Spok95/batch-weighing/internal/infra/blob/fs"
	blobmem "github.com/Spok95/batch-weighing/internal/infra/blob/memory"
	blobs3 "github.com/Spok95/batch-weighing/internal/infra/blob/s3"
	"github.com/Spok95/batch-weighing/internal/infra/db"
	"github.com/Spok95/batch-weighing/internal/infra/metrics"
	"github.com/Spok95/batch-weighing/internal/infra/notify"
	"github.com/Spok95/batch-weighing/internal/infra/persistence/memory"
	"github.com/Spok95/batch-weighing/internal/infra/persistence/sqlite"
)

type stores struct {
	catalog   catalog.Store
	processes process.Store
	archive   archive.Store
	packaging packaging.Store
	close     func()
}

func openStores(ctx context.Context, c config.Config) (*stores, error) {
	switch c.Storage.Driver {
	case config.StorageMemory:
		st := memory.New()
		return &stores{st.Catalog(), st.Processes(), st.Archive(), st.Packaging(), func() {}}, nil

	case config.StorageSQLite:
		st, err := sqlite.Open(ctx, c.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite store opened", "path", st.Path())
		return &stores{st.Catalog(), st.Processes(), st.Archive(), st.Packaging(), func() { _ = st.Close() }}, nil

	case config.StoragePostgres:
		if c.Postgres.AutoMigrate {
			if err := db.Migrate(ctx, c.Postgres.DSN, log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := db.Connect(ctx, c.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		log.Info("db connected")
		return &stores{
			catalog.NewRepo(pool), process.NewRepo(pool), archive.NewRepo(pool), packaging.NewRepo(pool),
			pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
}

type app struct {
	stores    *stores
	metrics   *metrics.Metrics
	tg        *tgbotapi.BotAPI
	notifier  *notify.Telegram
	catalog   *catalog.Service
	processes *process.Service
	archive   *archive.Service
	packaging *packaging.Service
}

func buildApp(ctx context.Context, c config.Config) (*app, error) {
	st, err := openStores(ctx, c)
	if err != nil {
		return nil, err
	}
	a := &app{stores: st, metrics: metrics.New()}

	if c.Telegram.Token != "" {
		if a.tg, err = tgbotapi.NewBotAPI(c.Telegram.Token); err != nil {
			log.Warn("telegram disabled", "err", err)
		} else {
			log.Info("telegram connected", "bot", a.tg.Self.UserName)
		}
	}
	if a.tg != nil && c.Telegram.AdminChatID != 0 {
		a.notifier = notify.NewTelegram(a.tg, c.Telegram.AdminChatID, log)
	}

	a.catalog = catalog.NewService(st.catalog, c.Validation, log,
		catalog.WithMetrics(a.metrics),
		catalog.WithPageSize(c.Catalog.PageSize),
	)
	popts := []process.Option{process.WithMetrics(a.metrics)}
	if a.notifier != nil {
		popts = append(popts, process.WithNotifier(a.notifier))
	}
	a.processes = process.NewService(st.processes, c.Validation, log, popts...)
	a.archive = archive.NewService(st.archive)
	a.packaging = packaging.NewService(st.packaging)
	return a, nil
}

func (a *app) Close() { a.stores.close() }

func (a *app) backupJob(ctx context.Context, c config.Config) (*backup.Job, error) {
	store, err := openBlob(ctx, c)
	if err != nil {
		return nil, err
	}
	opts := []backup.Option{backup.WithKeep(c.Backup.Keep), backup.WithObserver(a.metrics)}
	if a.notifier != nil {
		opts = append(opts, backup.WithObserver(a.notifier))
	}
	src := backup.ServiceSource{Catalog: a.catalog, Archive: a.archive}
	return backup.NewJob(store, src, log, opts...), nil
}

// operatorBot returns nil when the bot is off or Telegram is unreachable.
// job may be nil when backups are disabled.
func (a *app) operatorBot(c config.Config, job *backup.Job) *bot.Bot {
	if !c.Telegram.Bot || a.tg == nil {
		return nil
	}
	d := bot.Deps{Catalog: a.catalog, Archive: a.archive, Processes: a.processes}
	if job != nil {
		d.Backup = job
	}
	return bot.New(a.tg, log, c.Telegram.AdminChatID, d)
}

func openBlob(ctx context.Context, c config.Config) (blob.Store, error) {
	switch blob.Driver(c.Backup.Driver) {
	case blob.DriverFilesystem, "":
		return blobfs.New(c.Backup.Dir)
	case blob.DriverS3:
		return blobs3.New(ctx, c.Backup.S3)
	case blob.DriverMemory:
		return blobmem.New(), nil
	}
	return nil, fmt.Errorf("unknown backup driver %q", c.Backup.Driver)
}
