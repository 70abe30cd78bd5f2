// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码、密钥）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 凭据单一数据源：密码/密钥只存在 .env 文件中，YAML 中不存储任何密码。
//
// 环境：
//   - 开发: APP_ENV=dev (默认) → configs/dev.yaml
//   - 测试: APP_ENV=test → configs/test.yaml
//   - 生产: APP_ENV=prod → configs/prod.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tourhub/internal/apiserver/auth"
	"tourhub/internal/mailer"
	"tourhub/internal/payment"
	"tourhub/internal/ratelimit"
	"tourhub/internal/shared/objstore"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Mongo     MongoConfig      `yaml:"mongo"`
	Auth      auth.Config      `yaml:"auth"`
	SMTP      mailer.Config    `yaml:"smtp"`
	Payment   payment.Config   `yaml:"payment"`
	MinIO     objstore.Config  `yaml:"minio"`
	RateLimit ratelimit.Config `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// MongoConfig MongoDB 配置
// 注意：Password 只从 MONGO_PASSWORD 环境变量读取
type MongoConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Database string `yaml:"database"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env       Environment
	Port      string
	MongoURI  string
	Database  string
	Auth      auth.Config
	SMTP      mailer.Config
	Payment   payment.Config
	MinIO     objstore.Config
	RateLimit ratelimit.Config
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	// 敏感信息只从环境变量读取
	yamlCfg.Mongo.Password = os.Getenv("MONGO_PASSWORD")
	yamlCfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	yamlCfg.SMTP.Username = os.Getenv("SMTP_USERNAME")
	yamlCfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	yamlCfg.Payment.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	yamlCfg.Payment.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	yamlCfg.MinIO.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	yamlCfg.MinIO.SecretKey = os.Getenv("MINIO_SECRET_KEY")

	// 生产环境强制 Secure Cookie
	yamlCfg.Auth.SecureCookie = env == EnvProduction

	return &Config{
		Env:       env,
		Port:      getEnv("PORT", yamlCfg.Server.Port),
		MongoURI:  buildMongoURI(yamlCfg.Mongo),
		Database:  yamlCfg.Mongo.Database,
		Auth:      yamlCfg.Auth,
		SMTP:      yamlCfg.SMTP,
		Payment:   yamlCfg.Payment,
		MinIO:     yamlCfg.MinIO,
		RateLimit: yamlCfg.RateLimit,
	}
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "3000"},
		Mongo: MongoConfig{
			Host:     "localhost",
			Port:     27017,
			Database: "tourhub",
		},
		Auth:      auth.DefaultConfig(),
		SMTP:      mailer.DefaultConfig(),
		Payment:   payment.DefaultConfig(),
		RateLimit: ratelimit.DefaultConfig(),
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildMongoURI 构建 MongoDB 连接字符串
func buildMongoURI(m MongoConfig) string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		// 连接串里的 <PASSWORD> 占位符替换为真实密码
		return strings.ReplaceAll(uri, "<PASSWORD>", m.Password)
	}
	if m.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", m.User, m.Password, m.Host, m.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", m.Host, m.Port)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Port: %s, Mongo: %s, DB: %s}",
		c.Env, c.Port, maskPassword(c.MongoURI), c.Database)
}

// maskPassword 隐藏连接串中的密码
func maskPassword(uri string) string {
	re := regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
	return re.ReplaceAllString(uri, "${1}***${3}")
}
