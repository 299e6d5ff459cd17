package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"platecam/internal/config"
	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/repository/sqlite"
	"platecam/internal/route"
	"platecam/internal/service"
	"platecam/internal/service/ai"
	"platecam/internal/service/archive"
	"platecam/internal/service/camera"
	"platecam/internal/service/capture"
	"platecam/internal/service/clip"
	"platecam/internal/service/consensus"
	"platecam/internal/service/encoder"
	"platecam/internal/service/framebuffer"
	"platecam/internal/service/gps"
	"platecam/internal/service/websocket"
	"platecam/internal/timeutil"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	hub        *websocket.HubService
	buffer     *framebuffer.FrameBuffer
	gps        *gps.Reader
	source     *camera.Source
	capturer   *capture.Capturer
	recognizer *ai.PlateRecognizer
	assembler  *clip.Assembler
	manager    *service.Manager
	archive    *archive.Service
	server     *http.Server
}

// NewApp wires every component from cfg. Resources opened before a failure are released.
func NewApp(cfg *config.Config) (a *App, err error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a = &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			if a.gps != nil {
				a.gps.Close()
			}
			a.close()
			a = nil
		}
	}()

	if err = os.MkdirAll(cfg.ResultDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	if a.db, err = sqlite.New(cfg.DatabasePath); err != nil {
		return nil, err
	}
	clipRepo := sqlite.NewClipRepository(a.db)
	sightingRepo := sqlite.NewSightingRepository(a.db)

	clock := timeutil.RealClock{}
	a.hub = websocket.NewHubService(log.With("component", "hub"))
	a.buffer = framebuffer.New(cfg.BufferCapacity(), cfg.Retention(), clock)

	var geo capture.GeoSource
	if cfg.GPSEnabled {
		if a.gps, err = gps.Open(cfg.GPSPort, cfg.GPSBaud, log.With("component", "gps")); err != nil {
			return nil, err
		}
		geo = a.gps
	}

	if a.source, err = camera.Open(cfg, log.With("component", "camera")); err != nil {
		return nil, err
	}
	a.capturer = capture.New(a.source, geo, a.buffer, cfg.FPS, clock, log.With("component", "capture"))

	if a.recognizer, err = ai.NewPlateRecognizer(cfg, log.With("component", "recognizer")); err != nil {
		return nil, err
	}
	detector := consensus.New(
		a.recognizer,
		ai.NewAnnotator(cfg.JPEGQuality),
		consensus.NewRegistry(cfg.SimilarityThreshold),
		cfg.WindowSize,
		cfg.DetectionThreshold,
		log.With("component", "consensus"),
	)

	pool := clip.NewPool(clip.PoolConfig{
		ResultDirectory: cfg.ResultDirectory,
		ClipName:        cfg.ClipName,
		PreviewName:     cfg.PreviewName,
		SavePreview:     cfg.SavePreview,
		Workers:         cfg.EncodeWorkers,
	}, encoder.NewVideoEncoder(log.With("component", "encoder")), clipRepo, a.hub, clock, log.With("component", "finalize"))
	a.assembler = clip.NewAssembler(a.buffer, pool, a.capturer.FPS, cfg.PreRecording(), cfg.PostRecording(), clock, log.With("component", "assembler"))
	a.manager = service.NewManager(a.buffer, detector, a.assembler, pool, sightingRepo, a.hub, clock, log.With("component", "manager"))

	httpClient := &http.Client{}
	packager := archive.NewPackager(cfg.ResultDirectory, cfg.UploadedDirName, cfg.ArchiveExtension,
		cfg.StabilityWindow(), archive.ZipCodec{Passphrase: cfg.Passphrase}, clock)
	a.archive = archive.NewService(archive.Options{
		ResultDirectory: cfg.ResultDirectory,
		UploadedDirName: cfg.UploadedDirName,
		ProbeURL:        cfg.ProbeTarget(),
		ProbeTimeout:    cfg.ProbeTimeout(),
		Interval:        cfg.UploadInterval(),
	}, packager, archive.NewTusTransfer(cfg.UploadURL, cfg.ChunkSize, httpClient), httpClient,
		clipRepo, a.hub, clock, log.With("component", "archive"))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: route.SetupRoutes(cfg, log, a.hub, a, clipRepo),
	}
	return a, nil
}

// Status reports the live pipeline state.
func (a *App) Status() dto.Status {
	return dto.Status{
		BufferedFrames: a.buffer.Len(),
		BufferCapacity: a.buffer.Capacity(),
		LatestFrameID:  a.buffer.LatestID(),
		CaptureFPS:     a.capturer.FPS(),
		Active:         a.assembler.Active(),
		Viewers:        a.hub.GetClientCount(),
	}
}

// Run starts every loop and blocks until ctx is cancelled, the source ends or
// a component fails. Shutdown stops capture first, then finalizes active clips,
// then lets the archive loop finish its iteration and finally closes the server.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	gpsCtx, stopGPS := context.WithCancel(context.Background())
	defer stopGPS()
	if a.gps != nil {
		go func() {
			if err := a.gps.Run(gpsCtx); err != nil {
				a.logger.Warning("GPS reader stopped: %v", err)
			}
		}()
	}

	managerCtx, stopManager := context.WithCancel(context.Background())
	managerDone := make(chan struct{})
	go func() {
		defer close(managerDone)
		a.manager.Run(managerCtx)
	}()

	archiveCtx, stopArchive := context.WithCancel(context.Background())
	archiveDone := make(chan struct{})
	go func() {
		defer close(archiveDone)
		a.archive.Run(archiveCtx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	captureCtx, stopCapture := context.WithCancel(context.Background())
	captureErr := make(chan error, 1)
	go func() {
		captureErr <- a.capturer.Run(captureCtx)
	}()

	a.logger.Info("🚀 Plate recorder running")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Results: %s", a.config.ResultDirectory)
	a.logger.Info("☁️ Upload: %s", a.config.UploadURL)

	var runErr error
	captureStopped := false
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case err := <-captureErr:
		captureStopped = true
		if err != nil && !errors.Is(err, io.EOF) {
			runErr = err
		}
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	stopCapture()
	if !captureStopped {
		if err := <-captureErr; err != nil && !errors.Is(err, io.EOF) && runErr == nil {
			runErr = err
		}
	}

	stopManager()
	<-managerDone

	stopArchive()
	<-archiveDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP server shutdown: %v", err)
	}

	a.logger.Info("🛑 Plate recorder stopped")
	return runErr
}

func (a *App) close() {
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.logger.Warning("Error closing video source: %v", err)
		}
	}
	if a.recognizer != nil {
		if err := a.recognizer.Close(); err != nil {
			a.logger.Warning("Error closing recognizer: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warning("Error closing database: %v", err)
		}
	}
}
