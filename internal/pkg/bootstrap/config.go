package bootstrap

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"sentinel/internal/pkg/logger"
)

// AutomationConfig 是自动化引擎的阈值配置。
// 阈值是运营策略而不是正确性的一部分，所以全部外置，默认值仅作兜底。
type AutomationConfig struct {
	ProcessingAfterHours     int `yaml:"processing_after_hours"`      // 支付后 N 小时无发货记录 -> PROCESSING
	AssumeDeliveredAfterDays int `yaml:"assume_delivered_after_days"` // 发货后 M 天无签收回执 -> DELIVERED
	AutoCompleteAfterDays    int `yaml:"auto_complete_after_days"`    // 签收后 K 天无退货申请 -> COMPLETED
	PassParallelism          int `yaml:"pass_parallelism"`            // 单趟内并行处理的订单数上限
	PassIntervalSeconds      int `yaml:"pass_interval_seconds"`       // 调度器触发周期
}

func (c AutomationConfig) ProcessingAfter() time.Duration {
	return time.Duration(c.ProcessingAfterHours) * time.Hour
}

func (c AutomationConfig) AssumeDeliveredAfter() time.Duration {
	return time.Duration(c.AssumeDeliveredAfterDays) * 24 * time.Hour
}

func (c AutomationConfig) AutoCompleteAfter() time.Duration {
	return time.Duration(c.AutoCompleteAfterDays) * 24 * time.Hour
}

func (c AutomationConfig) PassInterval() time.Duration {
	return time.Duration(c.PassIntervalSeconds) * time.Second
}

// Config 是进程级配置的根结构
type Config struct {
	App struct {
		Automation AutomationConfig `yaml:"automation"`
		CronSecret string           `yaml:"cron_secret"` // 定时触发接口的共享密钥
	} `yaml:"app"`
	Infra struct {
		Mysql struct {
			DSN string `yaml:"dsn"`
		} `yaml:"mysql"`
		Kafka struct {
			Brokers           []string `yaml:"brokers"`
			NotificationTopic string   `yaml:"notification_topic"`
		} `yaml:"kafka"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Zookeeper struct {
			Servers []string `yaml:"servers"`
		} `yaml:"zookeeper"`
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Auth struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"auth"`
		Ledger struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"ledger"`
		TrustService struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"trust_service"`
	} `yaml:"infra"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// Init 加载进程配置。优先读取 CONFIG_PATH 指定的 YAML 文件，
// 读不到时退回到内置默认值加环境变量覆盖。
func Init() {
	configOnce.Do(func() {
		currentConfig = defaultConfig()

		path := os.Getenv("CONFIG_PATH")
		if path == "" {
			logger.Logger().Warn().Msg("CONFIG_PATH not set, using built-in defaults")
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Logger().Fatal().Err(err).Str("path", path).Msg("failed to read config file")
		}
		if err := yaml.Unmarshal(data, &currentConfig); err != nil {
			logger.Logger().Fatal().Err(err).Str("path", path).Msg("failed to parse config file")
		}
		logger.Logger().Info().Str("path", path).Msg("config loaded")
	})
}

// GetCurrentConfig 返回当前生效的配置
func GetCurrentConfig() Config {
	return currentConfig
}

func defaultConfig() Config {
	var cfg Config
	cfg.App.Automation = AutomationConfig{
		ProcessingAfterHours:     24,
		AssumeDeliveredAfterDays: 7,
		AutoCompleteAfterDays:    14,
		PassParallelism:          8,
		PassIntervalSeconds:      300,
	}
	cfg.App.CronSecret = getEnv("CRON_SECRET", "")
	cfg.Infra.Mysql.DSN = getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/sentinel?charset=utf8mb4&parseTime=True&loc=UTC")
	cfg.Infra.Kafka.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	cfg.Infra.Kafka.NotificationTopic = getEnv("NOTIFICATION_TOPIC", "trust-notifications")
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Infra.Zookeeper.Servers = strings.Split(getEnv("ZK_SERVERS", "localhost:2181"), ",")
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	cfg.Infra.Auth.BaseURL = getEnv("AUTH_SERVICE_URL", "http://localhost:8090")
	cfg.Infra.Ledger.BaseURL = getEnv("LEDGER_SERVICE_URL", "http://localhost:8091")
	cfg.Infra.TrustService.BaseURL = getEnv("TRUST_SERVICE_URL", "http://localhost:8081")
	return cfg
}
