package dashboard

import (
	"context"
	"database/sql"
	"dashboard/internal/engine/editor"
	"dashboard/internal/engine/layout"
	"dashboard/internal/engine/route"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Mode    string
	ApiPort string
	// InstanceID identifies this process in layout notifications
	InstanceID   string
	MainDatabase struct {
		Host         string
		Port         string
		User         string
		Password     string
		DatabaseName string
		SSLMode      string
	}
	JWTConfig struct {
		Secret string
	}
	RedisConfig struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	NatsConfig   NatsConfig
	EditorConfig EditorConfig
}

type NatsConfig struct {
	Enabled  bool
	URL      string
	TenantID string
}

// EditorConfig holds the graph editor constants
type EditorConfig struct {
	Columns          int
	CellWidth        float64
	CellHeight       float64
	NodeWidth        float64
	NodeHeight       float64
	MinZoom          float64
	MaxZoom          float64
	MaxControlOffset float64
	MaxLevelPasses   int
	SaveTimeout      time.Duration
	PositionCacheTTL time.Duration
}

func (slf EditorConfig) LayoutConfig() layout.Config {
	return layout.Config{
		Columns:    slf.Columns,
		CellWidth:  slf.CellWidth,
		CellHeight: slf.CellHeight,
		NodeWidth:  slf.NodeWidth,
		NodeHeight: slf.NodeHeight,
	}
}

func (slf EditorConfig) RouterConfig() route.Config {
	cfg := route.DefaultConfig()
	cfg.MaxControlOffset = slf.MaxControlOffset
	return cfg
}

func (slf EditorConfig) ControllerConfig() editor.Config {
	cfg := editor.DefaultConfig()
	cfg.MinZoom = slf.MinZoom
	cfg.MaxZoom = slf.MaxZoom
	cfg.MaxLevelPasses = slf.MaxLevelPasses
	return cfg
}

// DefaultEditorConfig mirrors the engine defaults
func DefaultEditorConfig() EditorConfig {
	l := layout.DefaultConfig()
	return EditorConfig{
		Columns:          l.Columns,
		CellWidth:        l.CellWidth,
		CellHeight:       l.CellHeight,
		NodeWidth:        l.NodeWidth,
		NodeHeight:       l.NodeHeight,
		MinZoom:          editor.DefaultMinZoom,
		MaxZoom:          editor.DefaultMaxZoom,
		MaxControlOffset: route.DefaultConfig().MaxControlOffset,
		MaxLevelPasses:   10,
		SaveTimeout:      5 * time.Second,
		PositionCacheTTL: 10 * time.Minute,
	}
}

var config AppConfig

func InitConfig(envfile string) {
	err := godotenv.Load(envfile)
	if err != nil {
		log.Fatal(fmt.Sprintf("Error loading %s file: %s", envfile, err))
	}
	defaults := DefaultEditorConfig()
	config = AppConfig{
		Mode:       getEnvOrPanic("RUN_MODE"),
		ApiPort:    getEnvOrPanic("API_PORT"),
		InstanceID: GetEnv("INSTANCE_ID", uuid.NewString()),
		MainDatabase: struct {
			Host         string
			Port         string
			User         string
			Password     string
			DatabaseName string
			SSLMode      string
		}{
			Host:         getEnvOrPanic("DB_HOSTNAME"),
			Port:         getEnvOrPanic("DB_PORT"),
			User:         getEnvOrPanic("DB_USERNAME"),
			Password:     getEnvOrPanic("DB_PASSWORD"),
			DatabaseName: getEnvOrPanic("DB_NAME"),
			SSLMode:      getEnvOrPanic("DB_SSL_MODE"),
		},
		JWTConfig: struct {
			Secret string
		}{
			Secret: getEnvOrPanic("JWT_SECRET"),
		},
		RedisConfig: struct {
			Host     string
			Port     string
			Password string
			DB       int
		}{
			Host:     GetEnv("REDIS_HOST", "localhost"),
			Port:     GetEnv("REDIS_PORT", "6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnvOrDefault("REDIS_DB", 0),
		},
		NatsConfig: NatsConfig{
			Enabled:  GetEnv("NATS_ENABLED", "false") == "true",
			URL:      GetEnv("NATS_URL", nats.DefaultURL),
			TenantID: GetEnv("TENANT_ID", "default"),
		},
		EditorConfig: EditorConfig{
			Columns:          getIntEnvOrDefault("EDITOR_COLUMNS", defaults.Columns),
			CellWidth:        getFloatEnvOrDefault("EDITOR_CELL_WIDTH", defaults.CellWidth),
			CellHeight:       getFloatEnvOrDefault("EDITOR_CELL_HEIGHT", defaults.CellHeight),
			NodeWidth:        getFloatEnvOrDefault("EDITOR_NODE_WIDTH", defaults.NodeWidth),
			NodeHeight:       getFloatEnvOrDefault("EDITOR_NODE_HEIGHT", defaults.NodeHeight),
			MinZoom:          getFloatEnvOrDefault("EDITOR_MIN_ZOOM", defaults.MinZoom),
			MaxZoom:          getFloatEnvOrDefault("EDITOR_MAX_ZOOM", defaults.MaxZoom),
			MaxControlOffset: getFloatEnvOrDefault("EDITOR_MAX_CONTROL_OFFSET", defaults.MaxControlOffset),
			MaxLevelPasses:   getIntEnvOrDefault("EDITOR_MAX_LEVEL_PASSES", defaults.MaxLevelPasses),
			SaveTimeout:      time.Duration(getIntEnvOrDefault("EDITOR_SAVE_TIMEOUT_SECONDS", 5)) * time.Second,
			PositionCacheTTL: time.Duration(getIntEnvOrDefault("EDITOR_POSITION_CACHE_MINUTES", 10)) * time.Minute,
		},
	}

	if err = config.EditorConfig.LayoutConfig().Validate(); err != nil {
		log.Fatalf("Invalid editor configuration: %s", err)
	}

	Logger = NewLogger(config.Mode)
	DB = connectToPostgres(config.MainDatabase.Host, config.MainDatabase.User, config.MainDatabase.Password, config.MainDatabase.DatabaseName, config.MainDatabase.Port, config.MainDatabase.SSLMode)
	Redis = connectToRedis(config.RedisConfig.Host, config.RedisConfig.Port, config.RedisConfig.Password, config.RedisConfig.DB)
	if config.NatsConfig.Enabled {
		Nats = ConnectToNats(config.NatsConfig.URL, "dashboard-api")
	}
}

func GetConfig() AppConfig {
	return config
}

func getEnvOrPanic(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s must be set", key)
	}
	return value
}

func GetEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func connectToPostgres(host string, username string, password string, dbname string, port string, ssl string) *gorm.DB {
	var err error
	var db *gorm.DB
	var conn *sql.DB

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, username, password, dbname, port, ssl)
	if db, err = gorm.Open(postgres.Open(dsn),
		&gorm.Config{
			Logger: logger.New(
				log.New(os.Stdout, "\r\n", log.LstdFlags),
				logger.Config{
					SlowThreshold: 200 * time.Millisecond,
					LogLevel:      logger.Error,
				},
			),
			TranslateError: true,
			NamingStrategy: schema.NamingStrategy{
				SingularTable: true,
			}}); err != nil {
		panic(err)
	}
	if conn, err = db.DB(); err != nil {
		panic(err)
	}
	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(10)
	conn.SetConnMaxLifetime(time.Hour)
	return db
}

// NewLogger builds the console logger shared by the services
func NewLogger(mode string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("  %s  ", i)
		},
		FormatFieldName: func(i interface{}) string {
			return fmt.Sprintf("%s=", i)
		},
		FormatFieldValue: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}

	level := zerolog.InfoLevel
	if mode == "dev" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger()
}

func connectToRedis(host string, port string, password string, db int) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	return client
}

func ConnectToNats(url string, name string) *nats.Conn {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to NATS: %v", err))
	}
	return conn
}
