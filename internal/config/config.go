package config

import (
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultMaxUploadBytes = 64 << 20
	reloadInterval        = 10 * time.Second
)

type Config struct {
	ServerPort     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MaxUploadBytes int64
	ArchiveWorkers int
	LogLevel       string
	LogJSON        bool
}

type ConfigManager struct {
	mu     sync.RWMutex
	config *Config
	stop   chan struct{}
	once   sync.Once
}

func NewConfigManager() *ConfigManager {
	cm := &ConfigManager{
		config: LoadConfig(),
		stop:   make(chan struct{}),
	}
	go cm.periodicReload(reloadInterval)
	return cm
}

func (cm *ConfigManager) periodicReload(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-cm.stop:
			return
		case <-ticker.C:
			newConfig := LoadConfig()
			cm.mu.Lock()
			cm.config = newConfig
			cm.mu.Unlock()
		}
	}
}

// Stop ends the reload loop. It is safe to call more than once.
func (cm *ConfigManager) Stop() {
	cm.once.Do(func() { close(cm.stop) })
}

func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

func LoadConfig() *Config {
	return &Config{
		ServerPort:     GetEnv("SERVER_PORT", "3003"),
		MinioEndpoint:  GetEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: GetEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: GetEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    GetEnv("MINIO_BUCKET", "cleaned-files"),
		MinioUseSSL:    GetEnv("MINIO_USE_SSL", "false") == "true",
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		ArchiveWorkers: int(getEnvInt64("ARCHIVE_WORKERS", 0)),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogJSON:        GetEnv("LOG_JSON", "false") == "true",
	}
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64 parses a non-negative integer, falling back to defaultValue
// when the variable is unset or malformed.
func getEnvInt64(key string, defaultValue int64) int64 {
	n, err := strconv.ParseInt(GetEnv(key, ""), 10, 64)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}
