package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pot-code/trilha/internal/catalogue"
	infra "github.com/pot-code/trilha/internal/infrastructure"
	"github.com/pot-code/trilha/internal/infrastructure/driver"
	"github.com/pot-code/trilha/internal/infrastructure/idgen"
	"github.com/pot-code/trilha/internal/infrastructure/logging"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
	"github.com/pot-code/trilha/internal/interfaces/rest"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := openKeyValueDB(ctx, option, logger)
	if err != nil {
		logger.Fatal("Failed to open catalogue storage", zap.Error(err), zap.String("storage.backend", option.Storage.Backend))
	}
	defer kv.Close()

	IDGenerator, err := idgen.NewTimeRandomGenerator(option.Security.IDRandomDigits)
	if err != nil {
		logger.Fatal("Failed to create id generator", zap.Error(err))
	}
	CatalogueStore := catalogue.NewKVStore(kv, option.Storage.Key, catalogue.DefaultCatalogue(), logger)
	CatalogueUseCase := catalogue.NewCatalogueUseCase(
		CatalogueStore,
		IDGenerator,
		validate.NewValidator(option.Locale),
		time.Now,
		logger,
	)

	app := rest.NewServer(option, kv, CatalogueUseCase, logger)
	if err := rest.Serve(ctx, app, option, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
	}
}

func openKeyValueDB(ctx context.Context, option *infra.AppConfig, logger *zap.Logger) (driver.KeyValueDB, error) {
	switch option.Storage.Backend {
	case infra.BackendMemory:
		logger.Warn("Using in-memory storage, the catalogue is lost on exit")
		return driver.NewMemoryKV(), nil
	case infra.BackendFile:
		return driver.NewFileKV(option.Storage.FileDir)
	case infra.BackendRedis:
		rdb := driver.NewRedisClient(&driver.RedisConfig{
			Host:     option.KVStore.Host,
			Port:     option.KVStore.Port,
			Password: option.KVStore.Password,
			DB:       option.KVStore.DB,
		})
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return nil, err
		}
		return rdb, nil
	}

	dbConn, err := driver.GetDBConnection(ctx, &driver.DBConfig{
		Driver:   option.Storage.Backend,
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Create SQL connection instance", zap.String("db.driver", option.Storage.Backend),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	sqlKV, err := driver.NewSQLKeyValueDB(dbConn, option.Storage.Backend)
	if err != nil {
		dbConn.Close(ctx)
		return nil, err
	}
	if err := sqlKV.EnsureSchema(ctx); err != nil {
		sqlKV.Close()
		return nil, err
	}
	return sqlKV, nil
}
