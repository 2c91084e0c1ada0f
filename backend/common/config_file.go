package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigTemplate = "PORT: 3000\nSQLITE_PATH: data/filebox.db\nSTORAGE_ROOT: storage\nJWT_SECRET: %s\nJWT_ALGORITHM: HS256\nTOKEN_EXPIRE_MINUTES: 30\n"

var configKeys = []string{
	"PORT",
	"SQL_DSN",
	"SQLITE_PATH",
	"STORAGE_ROOT",
	"JWT_SECRET",
	"JWT_ALGORITHM",
	"TOKEN_EXPIRE_MINUTES",
	"REDIS_CONN_STRING",
	"FILE_LIST_CACHE_TTL",
	"GLOBAL_API_RATE_LIMIT",
	"CRITICAL_RATE_LIMIT",
	"APP_TITLE",
	"LOCALES_DIR",
}

// LoadConfig 按优先级加载配置: 配置文件 < .env < 环境变量
func LoadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if err := loadConfigFile(); err != nil {
		return err
	}

	if err := applyConfigMap(envConfigMap()); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}

	// 空密钥签出的 token 可被伪造
	if strings.TrimSpace(JWTSecret) == "" {
		return errors.New("JWT_SECRET is empty, set it in the config file or environment")
	}
	return nil
}

func defaultConfigPath() (string, error) {
	if *ConfigPath != "" {
		return *ConfigPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "filebox", "config.yaml"), nil
}

func loadConfigFile() error {
	configPath, err := defaultConfigPath()
	if err != nil {
		return err
	}

	if err := ensureConfigFile(configPath); err != nil {
		return err
	}

	configMap, err := parseYamlConfig(configPath)
	if err != nil {
		return err
	}

	if err := applyConfigMap(configMap); err != nil {
		return fmt.Errorf("apply config file %s: %w", configPath, err)
	}

	return nil
}

func ensureConfigFile(configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", configDir, err)
	}

	configFile, err := os.OpenFile(configPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create config file %s: %w", configPath, err)
	}
	defer configFile.Close()

	if _, err := configFile.WriteString(fmt.Sprintf(defaultConfigTemplate, uuid.New().String())); err != nil {
		return fmt.Errorf("write default config file %s: %w", configPath, err)
	}

	return nil
}

func parseYamlConfig(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml config %s: %w", path, err)
	}

	values := make(map[string]interface{})
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse yaml config %s: %w", path, err)
	}

	configMap := make(map[string]string, len(values))
	for key, value := range values {
		configKey := strings.ToUpper(strings.TrimSpace(key))
		if configKey == "" || value == nil {
			continue
		}
		configMap[configKey] = strings.TrimSpace(fmt.Sprint(value))
	}

	return configMap, nil
}

func envConfigMap() map[string]string {
	configMap := make(map[string]string)
	for _, key := range configKeys {
		if value, ok := os.LookupEnv(key); ok {
			configMap[key] = strings.TrimSpace(value)
		}
	}
	return configMap
}

func applyConfigMap(configMap map[string]string) error {
	if configValue, ok := configMap["SQL_DSN"]; ok && configValue != "" {
		SQLDSN = configValue
	}

	if configValue, ok := configMap["SQLITE_PATH"]; ok && configValue != "" {
		SQLitePath = configValue
	}

	if configValue, ok := configMap["STORAGE_ROOT"]; ok && configValue != "" {
		StorageRoot = configValue
	}

	if configValue, ok := configMap["JWT_SECRET"]; ok && configValue != "" {
		JWTSecret = configValue
	}

	if configValue, ok := configMap["JWT_ALGORITHM"]; ok && configValue != "" {
		switch strings.ToUpper(configValue) {
		case "HS256", "HS384", "HS512":
			JWTAlgorithm = strings.ToUpper(configValue)
		default:
			return fmt.Errorf("unsupported JWT_ALGORITHM %q", configValue)
		}
	}

	if configValue, ok := configMap["REDIS_CONN_STRING"]; ok && configValue != "" {
		RedisConnString = configValue
	}

	if configValue, ok := configMap["LOCALES_DIR"]; ok && configValue != "" {
		LocalesDir = configValue
	}

	if configValue, ok := configMap["APP_TITLE"]; ok && configValue != "" {
		SystemName = configValue
	}

	if configValue, ok := configMap["PORT"]; ok && configValue != "" {
		portInt, err := strconv.Atoi(configValue)
		if err != nil {
			return fmt.Errorf("invalid value for PORT: %w", err)
		}
		*Port = portInt
	}

	if configValue, ok := configMap["TOKEN_EXPIRE_MINUTES"]; ok && configValue != "" {
		minutes, err := strconv.Atoi(configValue)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("invalid value for TOKEN_EXPIRE_MINUTES: %q", configValue)
		}
		TokenExpireMinutes = minutes
	}

	if configValue, ok := configMap["FILE_LIST_CACHE_TTL"]; ok && configValue != "" {
		ttl, err := parseSecondsOrDuration(configValue)
		if err != nil {
			return fmt.Errorf("invalid value for FILE_LIST_CACHE_TTL: %w", err)
		}
		FileListCacheTTL = ttl
	}

	if configValue, ok := configMap["GLOBAL_API_RATE_LIMIT"]; ok && configValue != "" {
		limit, err := strconv.Atoi(configValue)
		if err != nil {
			return fmt.Errorf("invalid value for GLOBAL_API_RATE_LIMIT: %w", err)
		}
		GlobalApiRateLimitNum = limit
	}

	if configValue, ok := configMap["CRITICAL_RATE_LIMIT"]; ok && configValue != "" {
		limit, err := strconv.Atoi(configValue)
		if err != nil {
			return fmt.Errorf("invalid value for CRITICAL_RATE_LIMIT: %w", err)
		}
		CriticalRateLimitNum = limit
	}

	return nil
}

// "60" 按秒处理，"1m30s" 按 time.ParseDuration 处理
func parseSecondsOrDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
