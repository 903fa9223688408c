package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// IdentityProviderConfig 外部身份提供方配置
// 核心信任 IdP 返回的 (user_id, organization_id, roles) 三元组
type IdentityProviderConfig struct {
	BaseURL        string // userinfo 服务地址
	APIKey         string // 服务间调用凭证（可选）
	TimeoutSeconds int    // 请求超时（秒）
}

// MQTTConfig MQTT 配置（用于审计事件对外广播，默认禁用）
type MQTTConfig struct {
	Enabled  bool   // 是否启用审计事件发布（默认 false）
	Broker   string // MQTT Broker 地址（如 "tcp://localhost:1883"）
	ClientID string // 客户端 ID
	Username string // 用户名（可选）
	Password string // 密码（可选）
	Topic    string // 发布主题（如 "esgbridge/audit"）
	QoS      byte
}

// Config esgbridge-data 配置
type Config struct {
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	IdP  IdentityProviderConfig
	MQTT MQTTConfig
}

func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "esgbridge")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// IdP 配置
	cfg.IdP.BaseURL = getEnv("IDP_BASE_URL", "http://localhost:9090")
	cfg.IdP.APIKey = getEnv("IDP_API_KEY", "")
	cfg.IdP.TimeoutSeconds = parseInt(getEnv("IDP_TIMEOUT_SECONDS", "10"), 10)

	// MQTT 配置（审计事件对外广播，默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "esgbridge-data-audit")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "esgbridge/audit")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
