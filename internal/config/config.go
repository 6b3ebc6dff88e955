package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Storage  StorageConfig  `yaml:"storage"`
	MinIO    MinIOConfig    `yaml:"minio"`
	S3       S3Config       `yaml:"s3"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Vision   VisionConfig   `yaml:"vision"`
	Verify   VerifyConfig   `yaml:"verify"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int      `yaml:"port"`
	APIKeys      []string `yaml:"api_keys"`
	APIKeyHeader string   `yaml:"api_key_header"`
	MaxUploadMB  int      `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the object store holding reference images.
type StorageConfig struct {
	Driver     string        `yaml:"driver"` // "minio" or "s3"
	PresignTTL time.Duration `yaml:"presign_ttl"`
}

type MinIOConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

type MongoConfig struct {
	URI             string `yaml:"uri"`
	Database        string `yaml:"database"`
	UsersCollection string `yaml:"users_collection"`
}

// RedisConfig enables the reference image cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	ImageTTL time.Duration `yaml:"image_ttl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectorModel      string  `yaml:"detector_model"`
	AttributeModel     string  `yaml:"attribute_model"`
	RecognitionModel   string  `yaml:"recognition_model"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	DetectorInputSize  int     `yaml:"detector_input_size"`
	FaceSize           int     `yaml:"face_size"`
	MinCropSize        int     `yaml:"min_crop_size"`
	WorkerCount        int     `yaml:"worker_count"`
	ONNXLibPath        string  `yaml:"onnx_lib_path"`
}

type VerifyConfig struct {
	SimilarityThreshold  float64       `yaml:"similarity_threshold"`
	ImageSearchThreshold float64       `yaml:"image_search_threshold"`
	ImageSearchQuality   float64       `yaml:"image_search_quality"`
	DelegateMode         string        `yaml:"delegate_mode"` // off, fallback, primary
	GeminiAPIKey         string        `yaml:"gemini_api_key"`
	GeminiModel          string        `yaml:"gemini_model"`
	DelegateTimeout      time.Duration `yaml:"delegate_timeout"`
	DelegateRPS          float64       `yaml:"delegate_rps"`
	DownloadTimeout      time.Duration `yaml:"download_timeout"`
	MaxDownloadMB        int           `yaml:"max_download_mb"`
}

type SearchConfig struct {
	DefaultLimit   int                 `yaml:"default_limit"`
	MinScore       int                 `yaml:"min_score"`
	AgePriority    *bool               `yaml:"age_priority"`
	StateWeight    int                 `yaml:"state_weight"`
	AgeWeight      int                 `yaml:"age_weight"`
	ExactBonus     int                 `yaml:"exact_bonus"`
	PartialBonus   int                 `yaml:"partial_bonus"`
	AgeBonuses     []int               `yaml:"age_bonuses"`
	HighScore      int                 `yaml:"high_score"`
	MediumScore    int                 `yaml:"medium_score"`
	Synonyms       map[string][]string `yaml:"synonyms"`
	Modifiers      []string            `yaml:"modifiers"`
	ReplaceDefault bool                `yaml:"replace_default_synonyms"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, then applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.APIKeyHeader == "" {
		cfg.Server.APIKeyHeader = "X-API-Key"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 20
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "minio"
	}
	if cfg.Storage.PresignTTL == 0 {
		cfg.Storage.PresignTTL = time.Hour
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "facesearch"
	}
	if cfg.Mongo.UsersCollection == "" {
		cfg.Mongo.UsersCollection = "users"
	}
	if cfg.Redis.ImageTTL == 0 {
		cfg.Redis.ImageTTL = 10 * time.Minute
	}
	if cfg.Vision.DetectorModel == "" {
		cfg.Vision.DetectorModel = "scrfd_10g_bnkps.onnx"
	}
	if cfg.Vision.AttributeModel == "" {
		cfg.Vision.AttributeModel = "genderage.onnx"
	}
	if cfg.Vision.RecognitionModel == "" {
		cfg.Vision.RecognitionModel = "w600k_mbf.onnx"
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.3
	}
	if cfg.Vision.DetectorInputSize == 0 {
		cfg.Vision.DetectorInputSize = 640
	}
	if cfg.Vision.FaceSize == 0 {
		cfg.Vision.FaceSize = 112
	}
	if cfg.Vision.MinCropSize == 0 {
		cfg.Vision.MinCropSize = 50
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Verify.SimilarityThreshold == 0 {
		cfg.Verify.SimilarityThreshold = 0.65
	}
	if cfg.Verify.ImageSearchThreshold == 0 {
		cfg.Verify.ImageSearchThreshold = 0.25
	}
	if cfg.Verify.ImageSearchQuality == 0 {
		cfg.Verify.ImageSearchQuality = 0.4
	}
	if cfg.Verify.DelegateMode == "" {
		cfg.Verify.DelegateMode = "fallback"
	}
	if cfg.Verify.GeminiModel == "" {
		cfg.Verify.GeminiModel = "gemini-2.0-flash-lite"
	}
	if cfg.Verify.DelegateTimeout == 0 {
		cfg.Verify.DelegateTimeout = 30 * time.Second
	}
	if cfg.Verify.DelegateRPS == 0 {
		cfg.Verify.DelegateRPS = 2
	}
	if cfg.Verify.DownloadTimeout == 0 {
		cfg.Verify.DownloadTimeout = 30 * time.Second
	}
	if cfg.Verify.MaxDownloadMB == 0 {
		cfg.Verify.MaxDownloadMB = 50
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MinScore == 0 {
		cfg.Search.MinScore = 1
	}
	if cfg.Search.AgePriority == nil {
		v := true
		cfg.Search.AgePriority = &v
	}
	if cfg.Search.StateWeight == 0 {
		cfg.Search.StateWeight = 15
	}
	if cfg.Search.AgeWeight == 0 {
		cfg.Search.AgeWeight = 10
	}
	if cfg.Search.ExactBonus == 0 {
		cfg.Search.ExactBonus = 10
	}
	if cfg.Search.PartialBonus == 0 {
		cfg.Search.PartialBonus = 5
	}
	if len(cfg.Search.AgeBonuses) == 0 {
		cfg.Search.AgeBonuses = []int{30, 20, 15, 10}
	}
	if cfg.Search.HighScore == 0 {
		cfg.Search.HighScore = 30
	}
	if cfg.Search.MediumScore == 0 {
		cfg.Search.MediumScore = 15
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.MaxSizeMB == 0 {
		cfg.Logging.MaxSizeMB = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAgeDays == 0 {
		cfg.Logging.MaxAgeDays = 7
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FS_API_KEY"); v != "" {
		cfg.Server.APIKeys = append(cfg.Server.APIKeys, v)
	}
	if v := os.Getenv("FS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("FS_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("FS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("FS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("FS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("FS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("FS_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("FS_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("FS_S3_ACCESS_KEY_ID"); v != "" {
		cfg.S3.AccessKeyID = v
	}
	if v := os.Getenv("FS_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.S3.SecretAccessKey = v
	}
	if v := os.Getenv("FS_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("FS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FS_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("FS_ONNX_LIB_PATH"); v != "" {
		cfg.Vision.ONNXLibPath = v
	}
	if v := os.Getenv("FS_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("FS_DELEGATE_MODE"); v != "" {
		cfg.Verify.DelegateMode = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Verify.GeminiAPIKey = v
	}
	if v := os.Getenv("FS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
