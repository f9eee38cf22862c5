package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env         string       `yaml:"env" env:"ENV" env-default:"local"`
	Logger      LoggerConfig `yaml:"logger"`
	HTTP        HTTP         `yaml:"http"`
	Postgres    PG           `yaml:"postgres"`
	Redis       Redis        `yaml:"redis"`
	Kafka       Kafka        `yaml:"kafka"`
	Payment     Payment      `yaml:"payment"`
	OrderNumber OrderNumber  `yaml:"order_number"`
	Outbox      Outbox       `yaml:"outbox"`
	Tracing     Tracing      `yaml:"tracing"`
	Limiter     Limiter      `yaml:"limiter"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL             string        `yaml:"url" env:"DB_URL"`
	MaxConns        int32         `yaml:"max_conns" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env-default:"1h"`
	MigrationsPath  string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

type Redis struct {
	Addr            string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	ProductCacheTTL time.Duration `yaml:"product_cache_ttl" env-default:"10m"`
}

type Kafka struct {
	Brokers                   []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID                   string   `yaml:"group_id" env-default:"order-service-group"`
	OrderEventsTopic          string   `yaml:"order_events_topic" env-default:"order_events"`
	PaymentNotificationsTopic string   `yaml:"payment_notifications_topic" env-default:"payment_notifications"`
}

type Payment struct {
	BaseURL         string        `yaml:"base_url" env:"PAYMENT_BASE_URL" env-default:"https://api.mercadopago.com"`
	AccessToken     string        `yaml:"access_token" env:"PAYMENT_ACCESS_TOKEN"`
	NotificationURL string        `yaml:"notification_url" env:"PAYMENT_NOTIFICATION_URL"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
	StrictReplay    bool          `yaml:"strict_replay" env:"PAYMENT_STRICT_REPLAY" env-default:"false"`
	GuestEmail      string        `yaml:"guest_email" env-default:"guest@fastfood.local"`
	MethodID        string        `yaml:"method_id" env-default:"pix"`
}

type OrderNumber struct {
	// postgres, redis or clock
	Backend string `yaml:"backend" env:"ORDER_NUMBER_BACKEND" env-default:"postgres"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
	Retention time.Duration `yaml:"retention" env:"OUTBOX_RETENTION" env-default:"168h"`
}

type Tracing struct {
	// empty disables export
	Endpoint    string  `yaml:"endpoint" env:"JAEGER_ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACE_SAMPLE_RATIO" env-default:"0.25"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

func MustLoad() *Config {
	configPath, ok := os.LookupEnv("CONFIG_PATH")
	if !ok || configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exists: %v\n", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	cfg.Logger.Env = cfg.Env

	return &cfg
}
