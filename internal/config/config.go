package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 应用全部配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Shopee   ShopeeConfig   `mapstructure:"shopee"`
	Token    TokenConfig    `mapstructure:"token"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP 服务
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig PostgreSQL 连接
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
}

// RedisConfig Token 缓存，URL 为空时退化为进程内缓存
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ShopeeConfig 开放平台应用参数
type ShopeeConfig struct {
	PartnerID       int64         `mapstructure:"partner_id"`
	PartnerKey      string        `mapstructure:"partner_key"`
	Host            string        `mapstructure:"host"`
	RedirectURL     string        `mapstructure:"redirect_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	RetryWait       time.Duration `mapstructure:"retry_wait"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	PageSize        int           `mapstructure:"page_size"`
	DetailBatchSize int           `mapstructure:"detail_batch_size"`
	MaxPages        int           `mapstructure:"max_pages"`
}

// TokenConfig Token 刷新策略
type TokenConfig struct {
	RefreshSkew       time.Duration `mapstructure:"refresh_skew"`
	RefreshAttempts   int           `mapstructure:"refresh_attempts"`
	RefreshRetryDelay time.Duration `mapstructure:"refresh_retry_delay"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	ExpiringWithin    time.Duration `mapstructure:"expiring_within"`
}

// SyncConfig 订单同步
type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ShopConcurrency  int           `mapstructure:"shop_concurrency"`
	DefaultWindow    time.Duration `mapstructure:"default_window"`
	AutoSyncWindow   time.Duration `mapstructure:"auto_sync_window"`
	AutoSyncCron     string        `mapstructure:"auto_sync_cron"`
	TokenCron        string        `mapstructure:"token_cron"`
	ManualCooldown   time.Duration `mapstructure:"manual_cooldown"`
	AutoSyncCooldown time.Duration `mapstructure:"auto_sync_cooldown"`
}

// AdminConfig 单管理员登录
type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"` // bcrypt
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTTTL       time.Duration `mapstructure:"jwt_ttl"`
}

// WebhookConfig 推送回调
type WebhookConfig struct {
	VerifySignature bool   `mapstructure:"verify_signature"`
	CallbackURL     string `mapstructure:"callback_url"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	Output string `mapstructure:"output"` // stdout | stderr | 文件路径
}

// ==================== 加载 ====================

// Load 读取配置文件与环境变量
// 环境变量前缀 APP，层级用下划线，例如 APP_SHOPEE_PARTNER_ID
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

// bindLegacyEnv 兼容已有部署使用的无前缀变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("shopee.partner_id", "APP_SHOPEE_PARTNER_ID", "SHOPEE_PARTNER_ID")
	_ = v.BindEnv("shopee.partner_key", "APP_SHOPEE_PARTNER_KEY", "SHOPEE_PARTNER_KEY")
	_ = v.BindEnv("shopee.redirect_url", "APP_SHOPEE_REDIRECT_URL", "SHOPEE_REDIRECT_URL")
	_ = v.BindEnv("database.dsn", "APP_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "APP_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("server.port", "APP_SERVER_PORT", "PORT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0)) // SSE 与流式同步需要长连接
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("redis.key_prefix", "shopee:token:")

	v.SetDefault("shopee.host", "https://partner.shopeemobile.com")
	v.SetDefault("shopee.timeout", 30*time.Second)
	v.SetDefault("shopee.retry_count", 3)
	v.SetDefault("shopee.retry_wait", time.Second)
	v.SetDefault("shopee.rate_per_second", 10.0)
	v.SetDefault("shopee.burst", 10)
	v.SetDefault("shopee.page_size", 50)
	v.SetDefault("shopee.detail_batch_size", 50)
	v.SetDefault("shopee.max_pages", 200)

	v.SetDefault("token.refresh_skew", 5*time.Minute)
	v.SetDefault("token.refresh_attempts", 3)
	v.SetDefault("token.refresh_retry_delay", 2*time.Second)
	v.SetDefault("token.cache_ttl", 24*time.Hour)
	v.SetDefault("token.expiring_within", 30*time.Minute)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.shop_concurrency", 5)
	v.SetDefault("sync.default_window", 7*24*time.Hour)
	v.SetDefault("sync.auto_sync_window", 24*time.Hour)
	v.SetDefault("sync.auto_sync_cron", "0 0 * * * *")
	v.SetDefault("sync.token_cron", "0 0/40 * * * *")
	v.SetDefault("sync.manual_cooldown", 30*time.Second)
	v.SetDefault("sync.auto_sync_cooldown", time.Minute)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.jwt_ttl", 12*time.Hour)

	v.SetDefault("webhook.verify_signature", false)
	v.SetDefault("webhook.callback_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

// ==================== 校验 ====================

// Validate 检查启动必填项
func (c *Config) Validate() error {
	var missing []string
	if c.Shopee.PartnerID == 0 {
		missing = append(missing, "shopee.partner_id")
	}
	if c.Shopee.PartnerKey == "" {
		missing = append(missing, "shopee.partner_key")
	}
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if c.Admin.JWTSecret == "" {
		missing = append(missing, "admin.jwt_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少必填配置: %s", strings.Join(missing, ", "))
	}
	if c.Shopee.DetailBatchSize <= 0 || c.Shopee.DetailBatchSize > 50 {
		return fmt.Errorf("shopee.detail_batch_size 必须在 1-50 之间，当前 %d", c.Shopee.DetailBatchSize)
	}
	if c.Shopee.PageSize <= 0 || c.Shopee.PageSize > 100 {
		return fmt.Errorf("shopee.page_size 必须在 1-100 之间，当前 %d", c.Shopee.PageSize)
	}
	return nil
}
