// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
// 仅 main 读取它，其余组件通过构造函数接收各自的配置段。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Agent         AgentConfig         `mapstructure:"agent"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses      string `mapstructure:"addresses"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	IndexName      string `mapstructure:"index_name"`
	GraphIndexName string `mapstructure:"graph_index_name"`
	Dimensions     int    `mapstructure:"dimensions"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	BucketName      string        `mapstructure:"bucket_name"`
	LinkExpiry      time.Duration `mapstructure:"link_expiry"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
// MaxAttempts 只对 429 与 5xx 响应生效。
type EmbeddingConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Dimensions  int           `mapstructure:"dimensions"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置不同角色下的系统提示词，留空时使用内置默认值。
type LLMPromptConfig struct {
	Customer string `mapstructure:"customer"`
	Advisor  string `mapstructure:"advisor"`
	General  string `mapstructure:"general"`
}

// AgentConfig 控制会话、工具编排与上下文组装的行为。
type AgentConfig struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	GraphTimeout    time.Duration `mapstructure:"graph_timeout"`
	KnowledgeTopK   int           `mapstructure:"knowledge_top_k"`
	GraphTopK       int           `mapstructure:"graph_top_k"`
	AdvisorTopN     int           `mapstructure:"advisor_top_n"`
	MaxContextChars int           `mapstructure:"max_context_chars"`
	MaxSnippetChars int           `mapstructure:"max_snippet_chars"`
	PersonaCacheTTL time.Duration `mapstructure:"persona_cache_ttl"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

// RetryConfig 控制数据库瞬时错误的重试策略。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量 CRMAGENT_<SECTION>_<KEY> 会覆盖文件中的同名配置。
func Init(configPath string) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CRMAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("kafka.topic", "knowledge-ingest")
	v.SetDefault("kafka.group_id", "crm-agent-go-consumer")
	v.SetDefault("elasticsearch.index_name", "knowledge_base")
	v.SetDefault("elasticsearch.graph_index_name", "knowledge_graph")
	v.SetDefault("elasticsearch.dimensions", 1536)
	v.SetDefault("embedding.timeout", 15*time.Second)
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("minio.link_expiry", 15*time.Minute)

	// 与 agent.DefaultConfig 保持一致
	v.SetDefault("agent.session_ttl", 24*time.Hour)
	v.SetDefault("agent.history_limit", 10)
	v.SetDefault("agent.graph_timeout", 3*time.Second)
	v.SetDefault("agent.knowledge_top_k", 5)
	v.SetDefault("agent.graph_top_k", 5)
	v.SetDefault("agent.advisor_top_n", 3)
	v.SetDefault("agent.max_context_chars", 12000)
	v.SetDefault("agent.max_snippet_chars", 1000)
	v.SetDefault("agent.persona_cache_ttl", 10*time.Minute)
	v.SetDefault("agent.retry.max_attempts", 3)
	v.SetDefault("agent.retry.base_delay", 100*time.Millisecond)
	v.SetDefault("agent.retry.max_delay", 2*time.Second)
}
