// Package app assembles the stores, models and services shared by the API
// and worker processes.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facesearch/internal/api/handlers"
	"github.com/your-org/facesearch/internal/biometric"
	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/queue"
	"github.com/your-org/facesearch/internal/search"
	"github.com/your-org/facesearch/internal/storage"
	"github.com/your-org/facesearch/internal/verify"
	"github.com/your-org/facesearch/internal/vision"
)

type App struct {
	Config    *config.Config
	Models    *vision.Registry
	DB        *storage.PostgresStore
	Objects   storage.ObjectStore
	Directory *storage.MongoDirectory
	Cache     *storage.RedisImageCache
	Producer  *queue.Producer
	Service   *biometric.Service

	delegate *verify.GeminiDelegate
	ortReady bool
}

// New connects every backing store and builds the biometric service. On
// error, whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	ready := false
	defer func() {
		if !ready {
			a.Close(context.Background())
		}
	}()

	var err error

	a.initRuntime()
	a.Models = vision.NewRegistry(cfg.Vision)
	a.Models.Load()

	a.DB, err = storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := a.DB.Migrate(ctx); err != nil {
		return nil, err
	}

	a.Objects, err = storage.NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	a.Directory, err = storage.NewMongoDirectory(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	a.Producer, err = queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if err := a.Producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	var cache storage.ImageCache
	if cfg.Redis.Addr != "" {
		a.Cache = storage.NewRedisImageCache(cfg.Redis)
		cache = a.Cache
	}
	downloader := storage.NewDownloader(a.Objects, cache, cfg.Verify.DownloadTimeout,
		int64(cfg.Verify.MaxDownloadMB)<<20, cfg.Storage.PresignTTL)

	var delegate verify.Delegate
	if cfg.Verify.GeminiAPIKey != "" && verify.DelegateMode(cfg.Verify.DelegateMode) != verify.ModeOff {
		a.delegate, err = verify.NewGeminiDelegate(ctx, cfg.Verify.GeminiAPIKey, cfg.Verify.GeminiModel, cfg.Verify.DelegateRPS)
		if err != nil {
			slog.Warn("vision delegate disabled", "error", err)
		} else {
			delegate = a.delegate
		}
	}
	verifier := verify.NewEngine(cfg.Verify, delegate)

	a.Service = biometric.NewService(biometric.Deps{
		Analyzer:  vision.NewAnalyzer(a.Models, cfg.Vision),
		Verifier:  verifier,
		Search:    search.NewEngine(cfg.Search, a.DB, a.Directory),
		Faces:     a.DB,
		Objects:   a.Objects,
		Directory: a.Directory,
		Publisher: a.Producer,
		Fetcher:   downloader,
	}, cfg.Verify)

	slog.Info("biometric service ready",
		"storage", cfg.Storage.Driver,
		"delegate_mode", verifier.Mode(),
		"image_cache", a.Cache != nil,
		"models", a.Models.Status(),
	)
	ready = true
	return a, nil
}

// Checks are the readiness probes of every connected store.
func (a *App) Checks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"postgres": a.DB.Ping,
		"objects":  a.Objects.Ping,
		"mongo":    a.Directory.Ping,
		"nats":     func(context.Context) error { return a.Producer.Ping() },
	}
	if a.Cache != nil {
		checks["redis"] = a.Cache.Ping
	}
	return checks
}

func (a *App) Close(ctx context.Context) {
	if a.delegate != nil {
		_ = a.delegate.Close()
	}
	if a.Producer != nil {
		a.Producer.Close()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.Directory != nil {
		_ = a.Directory.Close(ctx)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Models != nil {
		a.Models.Close()
	}
	if a.ortReady {
		_ = ort.DestroyEnvironment()
	}
}

// initRuntime starts ONNX Runtime. Failure is not fatal: every vision
// component has a non-model fallback.
func (a *App) initRuntime() {
	lib := a.Config.Vision.ONNXLibPath
	if lib == "" {
		lib = onnxLibPath()
	}
	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("onnx runtime init failed, vision runs on fallbacks", "lib", lib, "error", err)
		return
	}
	a.ortReady = true
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
