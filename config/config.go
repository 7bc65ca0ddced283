package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	awspkg "cart-monitor-service/pkg/aws"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BusSNS   = "sns"
	BusSQS   = "sqs"
	BusKafka = "kafka"
)

// Config is the explicit configuration handed to every component at
// construction. Nothing below config reads the environment directly.
type Config struct {
	Port        string `envconfig:"PORT" default:"8088"`
	Environment string `envconfig:"APP_ENV" default:"development"`

	// AllowedOrigins is the comma separated CORS allow list of the HTTP API.
	AllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Cache. When RedisSecretName is set the connection credentials are read
	// from Secrets Manager and override REDIS_URL.
	RedisURL        string `envconfig:"REDIS_URL" default:"redis://redis:6379"`
	RedisSecretName string `envconfig:"REDIS_SECRET_NAME"`
	ScanPattern     string `envconfig:"CART_KEY_PATTERN" default:"cart:*" validate:"required"`
	ScanPageSize    int64  `envconfig:"SCAN_PAGE_SIZE" default:"100" validate:"gt=0"`

	// PayloadFormat is the encoding of the cart stored in the "data" field:
	// "protobuf" (Online Boutique cartservice) or "json".
	PayloadFormat string `envconfig:"CART_PAYLOAD_FORMAT" default:"protobuf" validate:"oneof=protobuf json"`

	// Catalog
	CatalogURL        string        `envconfig:"CATALOG_URL" default:"http://product-service:8082" validate:"required,url"`
	CatalogTimeout    time.Duration `envconfig:"CATALOG_TIMEOUT" default:"5s"`
	CatalogRPS        float64       `envconfig:"CATALOG_RPS" default:"50"`
	CatalogBurst      int           `envconfig:"CATALOG_BURST" default:"10"`
	EnrichConcurrency int           `envconfig:"ENRICH_CONCURRENCY" default:"4"`

	// Bus
	BusBackend     string        `envconfig:"BUS_BACKEND" default:"sns" validate:"oneof=sns sqs kafka"`
	BusDestination string        `envconfig:"BUS_DESTINATION" required:"true"`
	KafkaBrokers   string        `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"10s"`

	// Monitoring
	AbandonedThresholdSeconds int64         `envconfig:"ABANDONED_THRESHOLD_SECONDS" required:"true" validate:"gte=0"`
	MonitorInterval           time.Duration `envconfig:"MONITOR_INTERVAL" default:"0s"`

	// AWS. AWSEndpoint points every SDK client at LocalStack when set.
	AWSEndpoint         string `envconfig:"AWS_ENDPOINT"`
	CloudWatchEnabled   bool   `envconfig:"CLOUDWATCH_ENABLED" default:"false"`
	CloudWatchNamespace string `envconfig:"CLOUDWATCH_NAMESPACE" default:"CartMonitor"`
	CloudWatchLogGroup  string `envconfig:"CLOUDWATCH_LOG_GROUP" default:"/ecommerce/cart-monitor"`
	MetricsNamespace    string `envconfig:"METRICS_NAMESPACE" default:"cart_monitor"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override cache credentials from Secrets Manager when running on AWS
	if cfg.RedisSecretName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWSEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for secrets: %w", err)
		}
		if err := cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SecretSource returns the string value of a named secret.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// ApplySecrets overrides the cache connection from the secret named by
// RedisSecretName. The secret is either a redis URL or a JSON object with
// REDIS_URL and/or REDIS_PASSWORD.
func (c *Config) ApplySecrets(ctx context.Context, src SecretSource) error {
	if c.RedisSecretName == "" {
		return nil
	}
	value, err := src.GetSecret(ctx, c.RedisSecretName)
	if err != nil {
		return fmt.Errorf("failed to load redis credentials: %w", err)
	}
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "{") {
		c.RedisURL = value
		return nil
	}

	var creds map[string]string
	if err := json.Unmarshal([]byte(value), &creds); err != nil {
		return fmt.Errorf("secret %s is not valid JSON", c.RedisSecretName)
	}
	if v := creds["REDIS_URL"]; v != "" {
		c.RedisURL = v
	}
	if v := creds["REDIS_PASSWORD"]; v != "" {
		u, err := url.Parse(c.RedisURL)
		if err != nil {
			// The parse error would echo the URL and its credentials.
			return errors.New("REDIS_URL is not a valid URL")
		}
		var user string
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, v)
		c.RedisURL = u.String()
	}
	return nil
}

var validate = validator.New()

// Validate checks the validate tags and the values tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Errorf("invalid %s: %v does not satisfy %s", fe.Field(), fe.Value(), constraint(fe)))
		}
	}
	if strings.TrimSpace(c.BusDestination) == "" {
		errs = append(errs, errors.New("BUS_DESTINATION must not be empty"))
	}
	if c.MonitorInterval < 0 {
		errs = append(errs, fmt.Errorf("MONITOR_INTERVAL must not be negative, got %s", c.MonitorInterval))
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = 1
	}
	return errors.Join(errs...)
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Brokers splits KAFKA_BROKERS into its comma separated addresses.
func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
