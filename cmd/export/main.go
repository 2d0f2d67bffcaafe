package main

import (
	"context"
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal"
	"github.com/2beens/gideon/internal/config"
	"github.com/2beens/gideon/internal/export"
	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/logging"
	"github.com/2beens/gideon/internal/profile"
	"github.com/2beens/gideon/internal/storage"
)

// one-shot export / import of the activity history

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	kindFlag := flag.String("kind", "history", "snapshot kind [history | profile]")
	dir := flag.String("dir", "", "destination directory (defaults to export_dir from the config)")
	importPath := flag.String("import", "", "history snapshot file to restore instead of exporting")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		log.Fatalf("load secrets: %s", err)
	}

	closeLogs := logging.Setup(logging.LoggerSetupParams{
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})
	defer closeLogs()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	backend, _, err := internal.OpenBackend(ctx, cfg, secrets.RedisPassword)
	if err != nil {
		log.Fatalf("open backend: %s", err)
	}
	defer func() {
		if err := storage.CloseBackend(backend); err != nil {
			log.Errorf("close backend: %s", err)
		}
	}()

	collections := history.NewCollections(backend, history.Caps{
		Workout:   cfg.WorkoutHistoryCap,
		Nutrition: cfg.NutritionHistoryCap,
		Progress:  cfg.ProgressHistoryCap,
	}, nil)
	service := export.NewService(collections, profile.NewStore(backend, nil), time.Now, nil)

	if *importPath != "" {
		if err := importSnapshot(ctx, service, *importPath); err != nil {
			log.Errorf("import %s: %s", *importPath, err)
			return
		}
		log.Infof("history restored from %s", *importPath)
		return
	}

	kind, err := export.ParseKind(*kindFlag)
	if err != nil {
		log.Errorf("%s", err)
		return
	}

	destDir := *dir
	if destDir == "" {
		destDir = cfg.ExportDir
	}

	path, err := service.WriteToDir(ctx, destDir, kind)
	if err != nil {
		log.Errorf("export %s: %s", kind, err)
		return
	}
	log.Infof("%s snapshot written to %s", kind, path)
}

func importSnapshot(ctx context.Context, service *export.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warnf("close snapshot file: %s", err)
		}
	}()

	snapshot, err := export.ReadHistorySnapshot(f)
	if err != nil {
		return err
	}
	return service.ImportHistory(ctx, snapshot)
}
