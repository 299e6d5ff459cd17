package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the recorder. Values come from environment
// variables (see Load) and may be overridden by a YAML file named in CONFIG_FILE.
type Config struct {
	// Capture
	Source           string  `yaml:"source"`
	FPS              float64 `yaml:"fps"`               // target capture rate
	RetentionSeconds float64 `yaml:"retention_seconds"` // how long frames stay in the live buffer
	FrameWidth       int     `yaml:"frame_width"`
	FrameHeight      int     `yaml:"frame_height"`
	JPEGQuality      int     `yaml:"jpeg_quality"`

	// Detection consensus
	DetectionThreshold  int     `yaml:"detection_threshold"` // occurrences that must be exceeded inside the window
	WindowSize          int     `yaml:"window_size"`         // processed frames kept in the window
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ModelPath           string  `yaml:"model_path"`
	ModelConfigPath     string  `yaml:"model_config_path"`
	PlateConfidence     float64 `yaml:"plate_confidence"`
	OCRLanguage         string  `yaml:"ocr_language"`
	OCRWhitelist        string  `yaml:"ocr_whitelist"`

	// Clips
	PreRecordingSeconds  float64 `yaml:"pre_recording_seconds"`
	PostRecordingSeconds float64 `yaml:"post_recording_seconds"`
	ClipName             string  `yaml:"clip_name"`
	SavePreview          bool    `yaml:"save_preview"`
	PreviewName          string  `yaml:"preview_name"`
	EncodeWorkers        int     `yaml:"encode_workers"`
	ResultDirectory      string  `yaml:"result_directory"`

	// Archive + upload
	UploadedDirName       string  `yaml:"uploaded_dir_name"`
	ArchiveExtension      string  `yaml:"archive_extension"`
	Passphrase            string  `yaml:"passphrase"`
	UploadURL             string  `yaml:"upload_url"`
	ProbeURL              string  `yaml:"probe_url"`
	ProbeTimeoutSeconds   float64 `yaml:"probe_timeout_seconds"`
	ChunkSize             int64   `yaml:"chunk_size"`
	StabilitySeconds      float64 `yaml:"stability_seconds"`
	UploadIntervalSeconds float64 `yaml:"upload_interval_seconds"`

	// GPS
	GPSEnabled bool   `yaml:"gps_enabled"`
	GPSPort    string `yaml:"gps_port"`
	GPSBaud    int    `yaml:"gps_baud"`

	// Local status server
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	DatabasePath string `yaml:"database_path"`
	LogDirectory string `yaml:"log_directory"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Source:           getEnv("SOURCE", "0"),
		FPS:              getEnvAsFloat("FPS", 10),
		RetentionSeconds: getEnvAsFloat("RETENTION_SECONDS", 30),
		FrameWidth:       getEnvAsInt("FRAME_WIDTH", 0),
		FrameHeight:      getEnvAsInt("FRAME_HEIGHT", 0),
		JPEGQuality:      getEnvAsInt("JPEG_QUALITY", 95),

		DetectionThreshold:  getEnvAsInt("DETECTION_THRESHOLD", 2),
		WindowSize:          getEnvAsInt("WINDOW_SIZE", 5),
		SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.8),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "plate_detector.pb")),
		ModelConfigPath:     getEnv("MODEL_CONFIG_PATH", filepath.Join(".", "models", "plate_detector.pbtxt")),
		PlateConfidence:     getEnvAsFloat("PLATE_CONFIDENCE", 0.5),
		OCRLanguage:         getEnv("OCR_LANGUAGE", "eng"),
		OCRWhitelist:        getEnv("OCR_WHITELIST", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"),

		PreRecordingSeconds:  getEnvAsFloat("PRE_RECORDING_SECONDS", 5),
		PostRecordingSeconds: getEnvAsFloat("POST_RECORDING_SECONDS", 5),
		ClipName:             getEnv("CLIP_NAME", "clip"),
		SavePreview:          getEnvAsBool("SAVE_PREVIEW", true),
		PreviewName:          getEnv("PREVIEW_NAME", "preview"),
		EncodeWorkers:        getEnvAsInt("ENCODE_WORKERS", 2),
		ResultDirectory:      getEnv("RESULT_DIR", filepath.Join(".", "results")),

		UploadedDirName:       getEnv("UPLOADED_DIR_NAME", "uploaded"),
		ArchiveExtension:      getEnv("ARCHIVE_EXT", "zip"),
		Passphrase:            getEnv("PASSPHRASE", ""),
		UploadURL:             getEnv("UPLOAD_URL", "http://localhost:1080/files/"),
		ProbeURL:              getEnv("PROBE_URL", ""),
		ProbeTimeoutSeconds:   getEnvAsFloat("PROBE_TIMEOUT_SECONDS", 1),
		ChunkSize:             getEnvAsInt64("CHUNK_SIZE", 5*1024*1024),
		StabilitySeconds:      getEnvAsFloat("STABILITY_SECONDS", 2),
		UploadIntervalSeconds: getEnvAsFloat("UPLOAD_INTERVAL_SECONDS", 5),

		GPSEnabled: getEnvAsBool("GPS_ENABLED", false),
		GPSPort:    getEnv("GPS_PORT", "/dev/ttyACM0"),
		GPSBaud:    getEnvAsInt("GPS_BAUD", 9600),

		Port:         getEnvAsInt("PORT", 8080),
		Password:     getEnv("PASSWORD", ""),
		DatabasePath: getEnv("DB_PATH", filepath.Join(".", "data", "platecam.db")),
		LogDirectory: getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overlayFile applies the keys present in a YAML file on top of the current values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %v", c.FPS))
	}
	if c.RetentionSeconds <= 0 {
		errs = append(errs, fmt.Errorf("retention_seconds must be positive, got %v", c.RetentionSeconds))
	}
	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window_size must be at least 1, got %d", c.WindowSize))
	}
	if c.DetectionThreshold < 0 {
		errs = append(errs, fmt.Errorf("detection_threshold must not be negative, got %d", c.DetectionThreshold))
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity_threshold must be within [0,1], got %v", c.SimilarityThreshold))
	}
	if c.PreRecordingSeconds < 0 || c.PostRecordingSeconds < 0 {
		errs = append(errs, errors.New("recording times must not be negative"))
	}
	if c.EncodeWorkers < 1 {
		errs = append(errs, fmt.Errorf("encode_workers must be at least 1, got %d", c.EncodeWorkers))
	}
	if c.ResultDirectory == "" {
		errs = append(errs, errors.New("result_directory is required"))
	}
	if c.UploadedDirName == "" || c.UploadedDirName != filepath.Base(c.UploadedDirName) {
		errs = append(errs, fmt.Errorf("uploaded_dir_name must be a plain name, got %q", c.UploadedDirName))
	}
	if c.ArchiveExtension == "" {
		errs = append(errs, errors.New("archive_extension is required"))
	}
	if c.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality must be within [1,100], got %d", c.JPEGQuality))
	}
	return errors.Join(errs...)
}

// BufferCapacity is the number of frames the live buffer retains.
func (c *Config) BufferCapacity() int {
	n := int(math.Round(c.FPS * c.RetentionSeconds))
	if n < 1 {
		return 1
	}
	return n
}

func (c *Config) Retention() time.Duration     { return seconds(c.RetentionSeconds) }
func (c *Config) PreRecording() time.Duration  { return seconds(c.PreRecordingSeconds) }
func (c *Config) PostRecording() time.Duration { return seconds(c.PostRecordingSeconds) }
func (c *Config) ProbeTimeout() time.Duration  { return seconds(c.ProbeTimeoutSeconds) }
func (c *Config) StabilityWindow() time.Duration {
	return seconds(c.StabilitySeconds)
}
func (c *Config) UploadInterval() time.Duration {
	return seconds(c.UploadIntervalSeconds)
}

// FrameInterval is the pacing interval of the capture loop.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.FPS)
}

// ProbeTarget is the URL used for the connectivity check; defaults to the upload endpoint.
func (c *Config) ProbeTarget() string {
	if c.ProbeURL != "" {
		return c.ProbeURL
	}
	return c.UploadURL
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
