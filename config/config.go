package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"nutritrack/logger"
	"nutritrack/models"
)

// Config is the process configuration read from the environment.
type Config struct {
	AppEnv string
	Port   string

	DBDriver   string // postgres | sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	SQLitePath string

	JWTSecret string
	Timezone  string

	AWSRegion         string
	S3Bucket          string
	S3Region          string
	CloudFrontURL     string
	SNSFCMArn         string
	RekognitionArn    string
	ClassifierBackend string // rekognition | vision | static

	RedisAddr   string
	CORSOrigins []string

	ScaleTick      time.Duration
	ScaleMinStep   int
	ScaleMaxStep   int
	CaptureConfirm int
	CaptureIdle    time.Duration

	OTelEnabled  bool
	OTelEndpoint string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		AppEnv:            env("APP_ENV", "development"),
		Port:              env("PORT", "8080"),
		DBDriver:          strings.ToLower(env("DB_DRIVER", "postgres")),
		DBHost:            os.Getenv("DB_HOST"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            os.Getenv("DB_NAME"),
		DBPort:            env("DB_PORT", "5432"),
		SQLitePath:        env("SQLITE_PATH", "nutritrack.db"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		Timezone:          env("TIMEZONE", "Asia/Manila"),
		AWSRegion:         os.Getenv("AWS_REGION"),
		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          os.Getenv("S3_REGION"),
		CloudFrontURL:     os.Getenv("CLOUDFRONT_URL"),
		SNSFCMArn:         os.Getenv("SNS_FCM_ARN"),
		RekognitionArn:    os.Getenv("REKOGNITION_PROJECT_VERSION_ARN"),
		ClassifierBackend: strings.ToLower(env("CLASSIFIER_BACKEND", "static")),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		CORSOrigins:       splitList(env("CORS_ORIGINS", "*")),
		ScaleTick:         time.Duration(envInt("SCALE_TICK_MS", 120)) * time.Millisecond,
		ScaleMinStep:      envInt("SCALE_MIN_STEP_G", 5),
		ScaleMaxStep:      envInt("SCALE_MAX_STEP_G", 25),
		CaptureConfirm:    envInt("CAPTURE_CONFIRM_FRAMES", 1),
		CaptureIdle:       time.Duration(envInt("CAPTURE_IDLE_MINUTES", 15)) * time.Minute,
		OTelEnabled:       envBool("OTEL_ENABLED", false),
		OTelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if cfg.S3Region == "" {
		cfg.S3Region = cfg.AWSRegion
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.ClassifierBackend {
	case "rekognition", "vision", "static":
	default:
		return fmt.Errorf("CLASSIFIER_BACKEND must be rekognition, vision or static, got %q", c.ClassifierBackend)
	}
	if c.ClassifierBackend == "rekognition" && c.AWSRegion == "" {
		return errors.New("AWS_REGION is required for the rekognition classifier")
	}
	if c.JWTSecret == "" && c.IsProduction() {
		return errors.New("JWT_SECRET is required in production")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Location is the zone day keys are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// InitDB opens the database, migrates every model and seeds the catalog.
func InitDB(ctx context.Context, cfg *Config, log *logger.Logger) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = OpenSQLite(cfg.SQLitePath, gcfg)
	default:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	n, err := SeedFoods(ctx, db)
	if err != nil {
		return nil, err
	}
	log.Info("database ready", "driver", cfg.DBDriver, "foods_seeded", n)
	return db, nil
}

// OpenSQLite opens a sqlite file with foreign keys on. One connection is
// kept so transactions serialize.
func OpenSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	if gcfg == nil {
		gcfg = &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=1&_busy_timeout=5000"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.FoodReference{},
		&models.Meal{},
		&models.MealItem{},
		&models.ActivityLogEntry{},
		&models.DailyNutritionSummary{},
		&models.DailyGoal{},
		&models.Alert{},
		&models.UserDevice{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

//go:embed foods.yaml
var foodsYAML []byte

type foodSeed struct {
	Name     string           `yaml:"name"`
	Category string           `yaml:"category"`
	Per100g  models.Nutrients `yaml:"per_100g"`
}

// SeedFoods inserts catalog profiles that are not present yet and returns
// how many rows it parsed. Existing rows are left alone.
func SeedFoods(ctx context.Context, db *gorm.DB) (int, error) {
	var doc struct {
		Foods []foodSeed `yaml:"foods"`
	}
	if err := yaml.Unmarshal(foodsYAML, &doc); err != nil {
		return 0, fmt.Errorf("parse foods.yaml: %w", err)
	}
	rows := make([]models.FoodReference, 0, len(doc.Foods))
	for _, f := range doc.Foods {
		rows = append(rows, models.FoodReference{Name: f.Name, Category: f.Category, Nutrients: f.Per100g})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("seed foods: %w", err)
	}
	return len(rows), nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return b
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
