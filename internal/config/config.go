package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     int
	LogDir   string
	Debug    bool
	CameraID string

	// Frame transport
	StreamAddr   string // TCP listener for the length-prefixed frame stream
	MaxFrameSize int    // hard cap in bytes, larger frames are protocol errors

	// Models and dataset
	DetectorModelPath string
	EmbedderModelPath string
	DatasetDir        string
	ReloadDebounce    time.Duration

	// Recognition
	RecognitionThreshold float32
	DetectionThreshold   float32
	MinFaceSize          int
	MinAspectRatio       float64
	MaxAspectRatio       float64

	// Attendance policy
	AbsenceTimeout    time.Duration
	LateThreshold     time.Duration
	PreClassGrace     time.Duration
	ScheduleRecheck   time.Duration
	SessionCleanup    time.Duration
	AbsenceCheckEvery time.Duration

	// Room mapping: camera id -> room name
	CameraRooms map[string]string

	// Local store and sync
	DatabasePath     string
	BackendAPI       string
	RemoteTimeout    time.Duration
	OfflineMode      bool
	SyncInterval     time.Duration
	SyncBatchSize    int
	LogRetentionDays int
	CacheRefresh     time.Duration

	// Emission
	EmitInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:     getEnvAsInt("PORT", 8080),
		LogDir:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		Debug:    getEnvAsBool("DEBUG", false),
		CameraID: getEnv("CAMERA_ID", "camera1"),

		StreamAddr:   getEnv("STREAM_ADDR", ":9000"),
		MaxFrameSize: getEnvAsInt("MAX_FRAME_SIZE", 10*1024*1024),

		DetectorModelPath: getEnv("DETECTOR_MODEL_PATH", filepath.Join(".", "models", "face_detection_yunet.onnx")),
		EmbedderModelPath: getEnv("EMBEDDER_MODEL_PATH", filepath.Join(".", "models", "arcface_r50.onnx")),
		DatasetDir:        getEnv("FACES_DIR", filepath.Join(".", "faces")),
		ReloadDebounce:    getEnvAsDuration("RELOAD_DEBOUNCE", 2*time.Second),

		RecognitionThreshold: getEnvAsFloat32("RECOGNITION_THRESHOLD", 0.55),
		DetectionThreshold:   getEnvAsFloat32("DETECTION_THRESHOLD", 0.7),
		MinFaceSize:          getEnvAsInt("MIN_FACE_SIZE", 40),
		MinAspectRatio:       getEnvAsFloat("MIN_FACE_ASPECT", 0.5),
		MaxAspectRatio:       getEnvAsFloat("MAX_FACE_ASPECT", 1.6),

		AbsenceTimeout:    getEnvAsDuration("ABSENCE_TIMEOUT", 5*time.Minute),
		LateThreshold:     getEnvAsDuration("LATE_THRESHOLD", 15*time.Minute),
		PreClassGrace:     getEnvAsDuration("PRE_CLASS_GRACE", 30*time.Minute),
		ScheduleRecheck:   getEnvAsDuration("SCHEDULE_RECHECK", 5*time.Minute),
		SessionCleanup:    getEnvAsDuration("SESSION_CLEANUP", time.Hour),
		AbsenceCheckEvery: getEnvAsDuration("ABSENCE_CHECK_INTERVAL", time.Second),

		CameraRooms: getEnvAsMap("CAMERA_ROOMS", map[string]string{"camera1": "Room 101"}),

		DatabasePath:     getEnv("DB_PATH", filepath.Join("data", "attendance.db")),
		BackendAPI:       getEnv("BACKEND_API", "http://localhost:5000/api/auth"),
		RemoteTimeout:    getEnvAsDuration("REMOTE_TIMEOUT", 5*time.Second),
		OfflineMode:      getEnvAsBool("OFFLINE_MODE", false),
		SyncInterval:     getEnvAsDuration("LOG_SYNC_INTERVAL", time.Minute),
		SyncBatchSize:    getEnvAsInt("LOG_SYNC_BATCH", 10),
		LogRetentionDays: getEnvAsInt("LOG_RETENTION_DAYS", 7),
		CacheRefresh:     getEnvAsDuration("SCHEDULE_CACHE_REFRESH", 15*time.Minute),

		EmitInterval: getEnvAsDuration("EMIT_INTERVAL", 200*time.Millisecond),
	}
}

// Room returns the room mapped to a camera id, or "" if unmapped.
func (c *Config) Room(cameraID string) string {
	return c.CameraRooms[cameraID]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	return float32(getEnvAsFloat(key, float64(defaultValue)))
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsMap parses "key1:value1,key2:value2" pairs.
func getEnvAsMap(key string, defaultValue map[string]string) map[string]string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	result := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
