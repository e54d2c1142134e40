package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/camden-git/facetrack/config"
	"github.com/camden-git/facetrack/database"
	"github.com/camden-git/facetrack/emotion"
	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/handlers"
	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/media"
	"github.com/camden-git/facetrack/realtime"
	"github.com/camden-git/facetrack/repository"
	"github.com/camden-git/facetrack/services"
	"github.com/camden-git/facetrack/workers"
)

// maxCaptureSide bounds uploaded captures before detection
const maxCaptureSide = 1280

func main() {
	envErr := godotenv.Load()

	if err := logger.Init(config.LogSettings()); err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Named("main")

	cfg, err := config.LoadConfig()
	if err != nil {
		lg.Fatalf("failed to load configuration: %v", err)
	}
	if envErr != nil {
		lg.Infof("no .env file found or error loading: %v", envErr)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		lg.Fatalf("failed to create data directory for %s: %v", cfg.DatabasePath, err)
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		lg.Fatalf("failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		lg.Fatalf("failed to migrate database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	people := repository.NewPersonRepository(db)
	detections := repository.NewDetectionRepository(db)

	strategy, closeModels := buildStrategy(cfg)
	defer closeModels()

	index := services.NewIdentityIndex(people)
	n, err := index.Reload(context.Background())
	if err != nil {
		lg.Fatalf("failed to load identities: %v", err)
	}
	lg.Infof("loaded %d identities (%s strategy)", n, strategy.Kind())

	emotions, closeEmotion := buildEmotionClassifier(cfg)
	defer closeEmotion()

	hub := realtime.NewHub()
	hub.CheckOrigin = originChecker(cfg.AllowedOrigins)
	go hub.Run()
	defer hub.Close()

	writer := workers.NewDetectionWriter(detections, cfg.EventQueueSize)

	recognizer := services.NewRecognizer(strategy, index)
	enrollment := services.NewEnrollmentService(people, strategy, index)
	session := services.NewDetectionSession(
		func() (services.FrameSource, error) {
			camera, err := media.OpenCamera(cfg.CameraIndex, cfg.FrameWidth, cfg.FrameHeight)
			if err != nil {
				return nil, err
			}
			return camera, nil
		},
		recognizer,
		emotions,
		hub,
		writer,
		services.SessionConfig{
			Interval:             time.Duration(cfg.FrameIntervalMs) * time.Millisecond,
			HistoryMinConfidence: cfg.HistoryMinConfidence,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := handlers.NewRouter(handlers.RouterDeps{
		People: &handlers.PeopleHandler{
			Enrollment:     enrollment,
			People:         people,
			Detections:     detections,
			MaxCaptureSide: maxCaptureSide,
		},
		Recognize: &handlers.RecognizeHandler{
			Recognizer:     recognizer,
			Index:          index,
			Emotions:       emotions,
			MaxCaptureSide: maxCaptureSide,
		},
		Session:    &handlers.SessionHandler{Session: session, BaseContext: ctx},
		Detections: &handlers.DetectionHandler{Detections: detections},
		Diagnostics: &handlers.DiagnosticsHandler{
			DatabasePath: cfg.DatabasePath,
			Index:        index,
			Writer:       writer,
			Clients:      hub.ClientCount,
		},
		Realtime:             hub.ServeWS,
		AllowedOrigins:       cfg.AllowedOrigins,
		OperatorPasswordHash: cfg.OperatorPasswordHash,
	})
	if cfg.OperatorPasswordHash == "" {
		lg.Warn("OPERATOR_PASSWORD_HASH is not set; the console is not password protected")
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		lg.Infof("console listening on http://%s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	session.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Warnf("server shutdown: %v", err)
	}
	writer.Stop()
}

// buildStrategy selects the recognition strategy. A learned strategy whose
// models fail to load still runs: its extractor falls back to classical
// descriptors.
func buildStrategy(cfg config.Config) (faces.Strategy, func()) {
	lg := logger.Named("main")

	if cfg.RecognitionStrategy == config.StrategyClassical {
		pigoDetector, err := faces.NewPigoDetector(cfg.PigoCascadePath, faces.DefaultPigoParams)
		if err != nil {
			lg.Warnf("pigo detector unavailable, treating each capture as one face: %v", err)
			return faces.NewClassicalStrategy(nil), func() {}
		}
		return faces.NewClassicalStrategy(pigoDetector), func() {}
	}

	var closers []func() error
	var detector faces.Detector
	var locator faces.Locator
	var embedder faces.Embedder

	dnn, err := media.NewDNNDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath)
	if err != nil {
		lg.Warnf("face detection model unavailable: %v", err)
		if pigoDetector, perr := faces.NewPigoDetector(cfg.PigoCascadePath, faces.DefaultPigoParams); perr == nil {
			detector = pigoDetector
		}
	} else {
		detector, locator = dnn, dnn
		closers = append(closers, dnn.Close)
	}

	emb, err := media.NewFaceEmbedder(cfg.FaceEmbeddingModelPath, cfg.FaceEmbeddingModel)
	if err != nil {
		lg.Warnf("face embedding model unavailable, descriptors will be classical: %v", err)
	} else {
		embedder = emb
		closers = append(closers, emb.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				lg.Warnf("closing model: %v", err)
			}
		}
	}
	return faces.NewLearnedStrategy(detector, locator, embedder), closeAll
}

func buildEmotionClassifier(cfg config.Config) (emotion.Classifier, func()) {
	lg := logger.Named("main")
	net, err := media.NewEmotionNet(cfg.EmotionModelPath)
	if err != nil {
		lg.Warnf("emotion model unavailable, using heuristic classifier: %v", err)
		return emotion.HeuristicClassifier{}, func() {}
	}
	return emotion.ModelClassifier{Model: net}, func() {
		if err := net.Close(); err != nil {
			lg.Warnf("closing emotion model: %v", err)
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
