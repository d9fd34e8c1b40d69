package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
	"github.com/JonMunkholm/stockroom/internal/storage"
)

// deps holds what a command needs once configuration is loaded.
type deps struct {
	cfg     *config.Config
	store   *storage.Handle
	service *core.Service
}

// loadConfig reads the env file, if any, then the environment. Variables
// already set win over the file.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", flags.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// withDeps opens the store and builds the service, then calls fn. The store
// is closed when fn returns. mappingFile overrides IMPORT_MAPPING_FILE when set.
func withDeps(ctx context.Context, flags *rootFlags, mappingFile string, fn func(*deps) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}

	if mappingFile == "" {
		mappingFile = cfg.Import.MappingFile
	}
	mapping, err := core.LoadHeaderMapping(mappingFile)
	if err != nil {
		return err
	}

	service, err := core.NewService(store.Store, core.Options{
		MutationTimeout:     cfg.Mutation.Timeout,
		ImportTimeout:       cfg.Import.Timeout,
		ImportMaxConcurrent: cfg.Import.MaxConcurrent,
		ImportMaxWait:       cfg.Import.MaxWaitTime,
		HeaderMapping:       mapping,
	})
	if err != nil {
		return err
	}

	return fn(&deps{cfg: cfg, store: store, service: service})
}
