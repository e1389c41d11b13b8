package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Agent    AgentConfig    `yaml:"agent"`
	Coupang  CoupangConfig  `yaml:"coupang"`
	Wing     WingConfig     `yaml:"wing"`
	Control  ControlConfig  `yaml:"control"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host          string           `yaml:"host"`
	Port          int              `yaml:"port"`
	User          string           `yaml:"user"`
	Password      string           `yaml:"password"`
	VHost         string           `yaml:"vhost"`
	Exchange      ExchangeConfig   `yaml:"exchange"`
	Queue         QueueConfig      `yaml:"queue"`
	RoutingKey    string           `yaml:"routing_key"`
	Notifications ExchangeConfig   `yaml:"notifications"`
	Connection    ConnectionConfig `yaml:"connection"`
	Publish       PublishConfig    `yaml:"publish"`
	Consumer      ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// AgentConfig holds agent service configuration
type AgentConfig struct {
	Store           string        `yaml:"store"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CoupangConfig holds Coupang open API credentials and client tuning.
// Retry and throttle values are defaults, not fixed law; zero values fall
// back to the marketplace-safe defaults in applyDefaults.
type CoupangConfig struct {
	Host           string        `yaml:"host"`
	AccessKey      string        `yaml:"access_key"`
	SecretKey      string        `yaml:"secret_key"`
	VendorID       string        `yaml:"vendor_id"`
	MaxPerPage     int           `yaml:"max_per_page"`
	StatusFilter   string        `yaml:"status_filter"`
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	PageThrottle   time.Duration `yaml:"page_throttle"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WingConfig holds WING admin console credentials and browser tuning
type WingConfig struct {
	LoginURL     string        `yaml:"login_url"`
	BaseURL      string        `yaml:"base_url"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	UserAgent    string        `yaml:"user_agent"`
	Headless     bool          `yaml:"headless"`
	SelectorWait time.Duration `yaml:"selector_wait"`
	ScrollStep   int           `yaml:"scroll_step"`
	ScrollDelay  time.Duration `yaml:"scroll_delay"`
	Courier      string        `yaml:"courier"`
	ConfirmNote  string        `yaml:"confirm_note"`
}

// ControlConfig holds batch orchestrator tuning
type ControlConfig struct {
	PriceDelay    time.Duration `yaml:"price_delay"`
	ShippingDelay time.Duration `yaml:"shipping_delay"`
	ReturnCharge  int64         `yaml:"return_charge"`
	ReportDir     string        `yaml:"report_dir"`
	NotifyChannel string        `yaml:"notify_channel"`
}

// Load reads and parses the configuration file. Environment variable
// references (${VAR}) in the file are expanded before parsing so secrets
// can stay out of the YAML.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// applyDefaults fills zero-valued tuning fields with marketplace-safe
// defaults.
func (c *Config) applyDefaults() {
	if c.Coupang.MaxPerPage == 0 {
		c.Coupang.MaxPerPage = 100
	}
	if c.Coupang.StatusFilter == "" {
		c.Coupang.StatusFilter = "APPROVED"
	}
	if c.Coupang.RetryAttempts == 0 {
		c.Coupang.RetryAttempts = 3
	}
	if c.Coupang.RetryDelay == 0 {
		c.Coupang.RetryDelay = 2 * time.Second
	}
	if c.Coupang.PageThrottle == 0 {
		c.Coupang.PageThrottle = time.Second
	}
	if c.Coupang.RequestTimeout == 0 {
		c.Coupang.RequestTimeout = 30 * time.Second
	}
	if c.Wing.SelectorWait == 0 {
		c.Wing.SelectorWait = 10 * time.Second
	}
	if c.Wing.ScrollStep == 0 {
		c.Wing.ScrollStep = 800
	}
	if c.Wing.ScrollDelay == 0 {
		c.Wing.ScrollDelay = 300 * time.Millisecond
	}
	if c.Control.PriceDelay == 0 {
		c.Control.PriceDelay = 100 * time.Millisecond
	}
	if c.Control.ShippingDelay == 0 {
		c.Control.ShippingDelay = 300 * time.Millisecond
	}
	if c.Control.ReportDir == "" {
		c.Control.ReportDir = "reports"
	}
}

// ValidateGatewayConfig checks the fields the api-service needs
func (c *Config) ValidateGatewayConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// ValidateAgentConfig checks the fields the agent-service needs
func (c *Config) ValidateAgentConfig() error {
	if err := c.ValidateGatewayConfig(); err != nil {
		return err
	}

	if c.Agent.Store == "" {
		return fmt.Errorf("agent store is required")
	}

	if c.Coupang.AccessKey == "" || c.Coupang.SecretKey == "" {
		return fmt.Errorf("coupang access_key and secret_key are required")
	}

	if c.Coupang.VendorID == "" {
		return fmt.Errorf("coupang vendor_id is required")
	}

	if c.Wing.LoginURL == "" || c.Wing.BaseURL == "" {
		return fmt.Errorf("wing login_url and base_url are required")
	}

	if c.Wing.Username == "" || c.Wing.Password == "" {
		return fmt.Errorf("wing username and password are required")
	}

	return nil
}
