package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/camden-git/facetrack/logger"
)

const (
	StrategyClassical = "classical"
	StrategyLearned   = "learned"
)

const (
	defaultFrameWidth           = 640
	defaultFrameHeight          = 480
	defaultFrameIntervalMs      = 100
	defaultEventQueueSize       = 64
	defaultHistoryMinConfidence = 0.7
)

type Config struct {
	// writable data directory holding the store file
	DataDirectory string
	DatabasePath  string

	// "classical" or "learned"
	RecognitionStrategy string

	// classical detector cascade (pigo)
	PigoCascadePath string

	// learned detector (SSD) and embedding model
	FaceDNNNetConfigPath   string
	FaceDNNNetModelPath    string
	FaceEmbeddingModelPath string
	FaceEmbeddingModel     string

	// emotion classifier, heuristic mode when the file is missing
	EmotionModelPath string

	// camera session
	CameraIndex     int
	FrameWidth      int
	FrameHeight     int
	FrameIntervalMs int

	// detection history
	HistoryMinConfidence float64
	EventQueueSize       int

	// operator console
	ListenAddr           string
	OperatorPasswordHash string
	AllowedOrigins       []string

	LogLevel       string
	LogDevelopment bool
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		logger.Named("config").Warnf("Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// camera indexes start at zero, so zero is a valid value here
func getEnvIndexOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val < 0 {
		logger.Named("config").Warnf("Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val < 0 || val > 1 {
		logger.Named("config").Warnf("Invalid %s '%s'. Using default %.2f. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBool(envVar string) bool {
	val, err := strconv.ParseBool(os.Getenv(envVar))
	return err == nil && val
}

// LogSettings reads LOG_LEVEL and LOG_DEVELOPMENT on their own so the logger
// can be built before LoadConfig reports invalid values through it.
func LogSettings() (level string, development bool) {
	return getEnvOrDefault("LOG_LEVEL", "info"), getEnvBool("LOG_DEVELOPMENT")
}

func LoadConfig() (Config, error) {
	dataDir := getEnvOrDefault("DATA_DIRECTORY", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataDir, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absDataDir, "database.db"))

	strategy := strings.ToLower(getEnvOrDefault("RECOGNITION_STRATEGY", StrategyClassical))
	if strategy != StrategyClassical && strategy != StrategyLearned {
		return Config{}, fmt.Errorf("unknown RECOGNITION_STRATEGY '%s' (want %s or %s)", strategy, StrategyClassical, StrategyLearned)
	}

	var origins []string
	for _, o := range strings.Split(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := Config{
		DataDirectory:          absDataDir,
		DatabasePath:           dbPath,
		RecognitionStrategy:    strategy,
		PigoCascadePath:        getEnvOrDefault("PIGO_CASCADE_PATH", "./models/facefinder"),
		FaceDNNNetConfigPath:   getEnvOrDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt"),
		FaceDNNNetModelPath:    getEnvOrDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel"),
		FaceEmbeddingModelPath: getEnvOrDefault("FACE_EMBEDDING_MODEL_PATH", "./models/arcface.onnx"),
		FaceEmbeddingModel:     getEnvOrDefault("FACE_EMBEDDING_MODEL", "arcface"),
		EmotionModelPath:       getEnvOrDefault("EMOTION_MODEL_PATH", "./models/emotion.onnx"),
		CameraIndex:            getEnvIndexOrDefault("CAMERA_INDEX", 0),
		FrameWidth:             getEnvIntOrDefault("FRAME_WIDTH", defaultFrameWidth),
		FrameHeight:            getEnvIntOrDefault("FRAME_HEIGHT", defaultFrameHeight),
		FrameIntervalMs:        getEnvIntOrDefault("FRAME_INTERVAL_MS", defaultFrameIntervalMs),
		HistoryMinConfidence:   getEnvFloatOrDefault("HISTORY_MIN_CONFIDENCE", defaultHistoryMinConfidence),
		EventQueueSize:         getEnvIntOrDefault("EVENT_QUEUE_SIZE", defaultEventQueueSize),
		ListenAddr:             getEnvOrDefault("LISTEN_ADDR", "127.0.0.1:8080"),
		OperatorPasswordHash:   os.Getenv("OPERATOR_PASSWORD_HASH"),
		AllowedOrigins:         origins,
	}
	cfg.LogLevel, cfg.LogDevelopment = LogSettings()

	return cfg, nil
}
