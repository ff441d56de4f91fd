package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Customs  CustomsConfig  `yaml:"customs"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN renders a pgx connection string. ssl_mode defaults to disable.
func (d DatabaseConfig) DSN() string {
	ssl := d.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.Username, d.Password, d.Host, d.Port, d.DBName, ssl)
}

type KafkaConfig struct {
	Host                         string `yaml:"host"`
	Port                         int    `yaml:"port"`
	TransactionUpdatedTopicName  string `yaml:"transaction_updated_topic_name"`
	SubmissionRequestedTopicName string `yaml:"submission_requested_topic_name"`
}

func (k KafkaConfig) Addr() string {
	return fmt.Sprintf("%s:%d", k.Host, k.Port)
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type CustomsConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	Environment string `yaml:"environment"` // "testing" | "production"
	SOAPMode    string `yaml:"soap_mode"`   // "http" | "fake"

	AFIPTestingURL        string `yaml:"afip_testing_url"`
	AFIPProductionURL     string `yaml:"afip_production_url"`
	ParaguayTestingURL    string `yaml:"paraguay_testing_url"`
	ParaguayProductionURL string `yaml:"paraguay_production_url"`
	AFIPSubmitterCUIT     string `yaml:"afip_submitter_cuit"`

	SOAPTimeoutSeconds   int `yaml:"soap_timeout_seconds"`
	MaxRetries           int `yaml:"max_retries"`
	TrackFreshnessHours  int `yaml:"track_freshness_hours"`
	TaxIDCacheTTLSeconds int `yaml:"taxid_cache_ttl_seconds"`

	WorkerRateLimitPerMinute int `yaml:"worker_rate_limit_per_minute"`
	WorkerConcurrency        int `yaml:"worker_concurrency"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
