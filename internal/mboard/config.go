package mboard

import (
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/michae-lzhou/Task-Board/internal/utils"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type Config struct {
	ConfigPath string
	Profile    string `env:"PROFILE" env-default:"baremetal"`
	Verbose    bool   `env:"VERBOSE" env-default:"true"`
	ApiGinMode string `env:"GIN_MODE" env-default:"debug"`

	Ip   string `env:"IP" env-default:"localhost"`
	Port string `env:"PORT" env-default:"8000"`

	AllowedOrigins []string `env:"ALLOW_ORIGINS" env-default:"*" env-separator:","`
	AllowedMethods []string `env:"ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE,OPTIONS" env-separator:","`
	AllowedHeaders []string `env:"ALLOW_HEADERS" env-default:"Origin,Content-Type,Accept,X-Request-ID" env-separator:","`

	// storage
	Store       string `env:"STORE" env-default:"postgres"`
	DBAddress   string `env:"DB_ADDRESS" env-default:"localhost:5432"`
	DBUser      string `env:"DB_USER" env-default:"postgres"`
	DBPassword  string `env:"DB_PASSWORD" env-default:"postgres"`
	DBName      string `env:"DB_NAME" env-default:"taskboard"`
	DBSSLMode   string `env:"DB_SSLMODE" env-default:"disable"`
	DBMaxConns  int    `env:"DB_MAX_CONNS" env-default:"10"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" env-default:"true"`

	// cross-instance event relay, off when RedisAddress is empty
	RedisAddress  string `env:"REDIS_ADDRESS" env-default:""`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisChannel  string `env:"REDIS_CHANNEL" env-default:"taskboard:events"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	WSSendBuffer    int           `env:"WS_SEND_BUFFER" env-default:"64"`
}

var secretFields = map[string]bool{
	"DBPassword":    true,
	"RedisPassword": true,
}

// loadConfig reads an optional .env file at path into the environment and
// binds the environment onto Config.
func loadConfig(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		log.Printf("Failed to load the config file at %s, using environment and defaults...", path)
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return Config{}, fmt.Errorf("failed to read config from environment: %w", err)
	}

	s := strings.Split(path, "/")
	config.ConfigPath = s[len(s)-1]
	config.Store = strings.ToLower(strings.TrimSpace(config.Store))
	config.AllowedOrigins = trimFields(config.AllowedOrigins)
	config.AllowedMethods = trimFields(config.AllowedMethods)
	config.AllowedHeaders = trimFields(config.AllowedHeaders)
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	if config.Store != storePostgres && config.Store != storeMemory {
		return Config{}, fmt.Errorf("unknown STORE %q (want %s or %s)", config.Store, storePostgres, storeMemory)
	}
	return config, nil
}

func trimFields(in []string) []string {
	return utils.Filter(utils.Map(in, strings.TrimSpace), func(f string) bool { return f != "" })
}

func (cfg *Config) toString() string {
	var strBuilder strings.Builder

	reflectedValues := reflect.ValueOf(cfg).Elem()
	reflectedTypes := reflect.TypeOf(cfg).Elem()

	strBuilder.WriteString(fmt.Sprintf("[CFG]CONFIGURATION: %s\n", cfg.ConfigPath))

	for i := 0; i < reflectedValues.NumField(); i++ {
		fieldName := reflectedTypes.Field(i).Name
		fieldValue := reflectedValues.Field(i).Interface()

		if secretFields[fieldName] {
			fieldValue = mask(fmt.Sprint(fieldValue))
		}

		strBuilder.WriteString("[CFG]")
		if i < 9 {
			strBuilder.WriteString(fmt.Sprintf("%d.  ", i+1))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%d. ", i+1))
		}
		if len(fieldName) <= 6 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else if len(fieldName) <= 14 {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t\t-> %v\n", fieldName, fieldValue))
		} else {
			strBuilder.WriteString(fmt.Sprintf("%v\t\t\t-> %v\n", fieldName, fieldValue))
		}
	}

	return strBuilder.String()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
