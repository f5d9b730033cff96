// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mail sender.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	// Provider selects the delivery backend: smtp, ses, graph, resend or stdout.
	// Empty means auto-detect.
	Provider string        `yaml:"provider"`
	Mail     MailConfig    `yaml:"mail"`
	SMTP     SMTPConfig    `yaml:"smtp"`
	SES      SESConfig     `yaml:"ses"`
	Graph    GraphConfig   `yaml:"graph"`
	Resend   ResendConfig  `yaml:"resend"`
	DKIM     DKIMConfig    `yaml:"dkim"`
	S3       S3Config      `yaml:"s3"`
	Logging  LoggingConfig `yaml:"logging"`
}

// MailConfig holds defaults applied to every outgoing message.
type MailConfig struct {
	// From is used when a message has no From address.
	From string `yaml:"from"`
	// Hostname is the right-hand side of generated Message-IDs.
	Hostname string `yaml:"hostname"`
}

// SMTPConfig holds SMTP relay client configuration.
type SMTPConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Auth        string        `yaml:"auth"`
	TLSPolicy   string        `yaml:"tls_policy"`
	ImplicitTLS bool          `yaml:"implicit_tls"`
	HELO        string        `yaml:"helo"`
	Timeout     time.Duration `yaml:"timeout"`
	TLS         TLSConfig     `yaml:"tls"`
}

// TLSConfig holds client TLS settings for the SMTP relay.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// ResendConfig holds Resend API configuration.
type ResendConfig struct {
	APIKey      string `yaml:"api_key"`
	SenderEmail string `yaml:"sender_email"`
	SenderName  string `yaml:"sender_name"`
}

// DKIMConfig holds DKIM signing configuration for raw MIME delivery.
type DKIMConfig struct {
	Domain         string `yaml:"domain"`
	Selector       string `yaml:"selector"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

// S3Config holds the S3 client configuration for s3:// attachments.
type S3Config struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.Provider = strings.ToLower(cfg.Provider)

	return cfg, nil
}

// SMTPConfigured returns true if an SMTP relay host is set.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != ""
}

// SMTPAuthEnabled returns true if both SMTP username and password are set.
func (c *Config) SMTPAuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// ResendConfigured returns true if a Resend API key is set.
func (c *Config) ResendConfigured() bool {
	return c.Resend.APIKey != ""
}

// DKIMConfigured returns true if domain, selector and key file are all set.
func (c *Config) DKIMConfigured() bool {
	return c.DKIM.Domain != "" && c.DKIM.Selector != "" && c.DKIM.PrivateKeyFile != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Mail.Hostname = "localhost"
	c.SMTP.Port = 587
	c.SMTP.TLSPolicy = "mandatory"
	c.SMTP.Timeout = 30 * time.Second
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	setString(&c.Provider, "PROVIDER")
	c.Provider = strings.ToLower(c.Provider)

	setString(&c.Mail.From, "MAIL_FROM")
	setString(&c.Mail.Hostname, "MAIL_HOSTNAME")

	setString(&c.SMTP.Host, "SMTP_HOST")
	setInt(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.Auth, "SMTP_AUTH")
	setString(&c.SMTP.TLSPolicy, "SMTP_TLS_POLICY")
	setBool(&c.SMTP.ImplicitTLS, "SMTP_IMPLICIT_TLS")
	setString(&c.SMTP.HELO, "SMTP_HELO")
	setDuration(&c.SMTP.Timeout, "SMTP_TIMEOUT")
	setString(&c.SMTP.TLS.CAFile, "SMTP_TLS_CA_FILE")
	setString(&c.SMTP.TLS.CertFile, "SMTP_TLS_CERT_FILE")
	setString(&c.SMTP.TLS.KeyFile, "SMTP_TLS_KEY_FILE")
	setString(&c.SMTP.TLS.ServerName, "SMTP_TLS_SERVER_NAME")
	setBool(&c.SMTP.TLS.InsecureSkipVerify, "SMTP_TLS_INSECURE_SKIP_VERIFY")

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	setString(&c.Graph.TenantID, "GRAPH_TENANT_ID")
	setString(&c.Graph.ClientID, "GRAPH_CLIENT_ID")
	setString(&c.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	setString(&c.Graph.Sender, "GRAPH_SENDER")

	setString(&c.Resend.APIKey, "RESEND_API_KEY")
	setString(&c.Resend.SenderEmail, "RESEND_FROM_EMAIL")
	setString(&c.Resend.SenderName, "RESEND_FROM_NAME")

	setString(&c.DKIM.Domain, "DKIM_DOMAIN")
	setString(&c.DKIM.Selector, "DKIM_SELECTOR")
	setString(&c.DKIM.PrivateKeyFile, "DKIM_PRIVATE_KEY_FILE")

	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setBool(&c.S3.PathStyle, "S3_PATH_STYLE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt ignores values that do not parse, keeping the current setting.
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
