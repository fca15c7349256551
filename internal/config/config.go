package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config healthmon（HTTP API + 采集管道）配置
type Config struct {
	HTTP struct {
		Addr string
	}
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
	Predictor PredictorConfig
	Staging   StagingConfig
	Alert     AlertConfig
	MQTT      MQTTConfig
}

// DatabaseConfig PostgreSQL 配置
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

// PredictorConfig 风险预测服务（外部 ML 服务）配置
type PredictorConfig struct {
	URL     string        // 预测服务地址（如 "http://127.0.0.1:5000"）
	Timeout time.Duration // 单次调用超时（默认 5s，不重试）
}

// StagingConfig 实时数据暂存配置
type StagingConfig struct {
	TTL time.Duration // 暂存条目过期时间（默认 5 分钟）
}

// AlertConfig 告警判定策略（预测服务词汇表 -> bool 的映射是可配置策略）
type AlertConfig struct {
	HighRiskLabels []string // 视为高风险的 predicted_risk 标签
	NormalValues   []string // alert 字段中视为"正常"的取值
}

// MQTTConfig MQTT 配置（设备直连采集通道，默认禁用）
type MQTTConfig struct {
	Enabled  bool   // 是否启用 MQTT 采集
	Broker   string // MQTT Broker 地址（如 "tcp://localhost:1883"）
	ClientID string // 客户端 ID
	Username string // 用户名（可选）
	Password string // 密码（可选）
	Topic    string // 订阅主题（如 "vitals/+/+"）
	QoS      byte
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "healthmon")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 预测服务配置（单次调用、固定超时；重试策略不在客户端内）
	cfg.Predictor.URL = getEnv("PREDICTOR_URL", "http://127.0.0.1:5000")
	cfg.Predictor.Timeout = time.Duration(parseInt(getEnv("PREDICTOR_TIMEOUT_SECONDS", "5"), 5)) * time.Second

	// 暂存 TTL：设备停止上报 5 分钟后实时数据失效
	cfg.Staging.TTL = time.Duration(parseInt(getEnv("STAGING_TTL_SECONDS", "300"), 300)) * time.Second

	cfg.Alert.HighRiskLabels = parseList(getEnv("ALERT_HIGH_RISK_LABELS", "High Risk"))
	cfg.Alert.NormalValues = parseList(getEnv("ALERT_NORMAL_VALUES", "normal,none,no,false,0"))

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "healthmon-ingest")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "vitals/+/+")
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
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
