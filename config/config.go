// server/config/config.go
package config

import (
	"time"

	"github.com/spf13/viper"
)

// --- Các struct con, phản ánh cấu trúc của YAML ---

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type MongoConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"dbName"`
}

// SchedulerConfig describes the delayed task scheduler and the endpoint it calls back.
type SchedulerConfig struct {
	TemporalHostPort string `mapstructure:"temporalHostPort"`
	Namespace        string `mapstructure:"namespace"`
	TaskQueue        string `mapstructure:"taskQueue"`
	ExecutorURL      string `mapstructure:"executorURL"`
	InvokerEmail     string `mapstructure:"invokerEmail"`
	Audience         string `mapstructure:"audience"`
}

type InvokerConfig struct {
	Issuer   string        `mapstructure:"issuer"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
}

// JWTConfig is the shared secret of end-user session tokens.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type SweeperConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batchSize"`
}

// TriggersConfig chọn cách kích hoạt reactor: "api" hoặc "changestream".
type TriggersConfig struct {
	Mode string `mapstructure:"mode"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

const (
	TriggerModeAPI          = "api"
	TriggerModeChangeStream = "changestream"
)

// --- Struct Config chính, bao gồm tất cả các struct con ---

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Invoker   InvokerConfig   `mapstructure:"invoker"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Triggers  TriggersConfig  `mapstructure:"triggers"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// EffectiveAudience returns the audience expected on invoker tokens, falling back to the executor URL.
func (c SchedulerConfig) EffectiveAudience() string {
	if c.Audience != "" {
		return c.Audience
	}
	return c.ExecutorURL
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.dbName", "shipshape")
	v.SetDefault("scheduler.temporalHostPort", "localhost:7233")
	v.SetDefault("scheduler.namespace", "default")
	v.SetDefault("scheduler.taskQueue", "shipshape-go-live")
	v.SetDefault("scheduler.executorURL", "http://localhost:8080/api/v1/tasks/go-live")
	v.SetDefault("scheduler.invokerEmail", "go-live-invoker@shipshape.internal")
	v.SetDefault("invoker.issuer", "shipshape-scheduler")
	v.SetDefault("invoker.tokenTTL", 5*time.Minute)
	v.SetDefault("jwt.expiration", 24*time.Hour)
	v.SetDefault("sweeper.interval", time.Minute)
	v.SetDefault("sweeper.batchSize", 500)
	v.SetDefault("triggers.mode", TriggerModeAPI)
}

// LoadConfig đọc cấu hình từ file và ghi đè bằng các biến môi trường.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.AutomaticEnv()

	// key "mongo.uri" trong YAML được ánh xạ tới biến môi trường "MONGO_URI"
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.allowedOrigins", "SERVER_ALLOWED_ORIGINS")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.dbName", "MONGO_DBNAME")
	v.BindEnv("scheduler.temporalHostPort", "TEMPORAL_HOST_PORT")
	v.BindEnv("scheduler.namespace", "TEMPORAL_NAMESPACE")
	v.BindEnv("scheduler.taskQueue", "TEMPORAL_TASK_QUEUE")
	v.BindEnv("scheduler.executorURL", "GO_LIVE_EXECUTOR_URL")
	v.BindEnv("scheduler.invokerEmail", "GO_LIVE_INVOKER_EMAIL")
	v.BindEnv("scheduler.audience", "GO_LIVE_AUDIENCE")
	v.BindEnv("invoker.issuer", "INVOKER_ISSUER")
	v.BindEnv("invoker.secret", "INVOKER_SECRET")
	v.BindEnv("invoker.tokenTTL", "INVOKER_TOKEN_TTL")
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	v.BindEnv("sweeper.interval", "SWEEPER_INTERVAL")
	v.BindEnv("sweeper.batchSize", "SWEEPER_BATCH_SIZE")
	v.BindEnv("triggers.mode", "TRIGGERS_MODE")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")

	// Nếu file không tồn tại, Viper sẽ chỉ sử dụng các biến môi trường.
	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
