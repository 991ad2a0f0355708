package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Firebase FirebaseConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Telnyx   TelnyxConfig
	Submit   SubmitConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type StoreConfig struct {
	Backend    string // firestore or sqlite
	SQLitePath string
}

type FirebaseConfig struct {
	ProjectID         string
	CredentialsPath   string
	FirestoreDatabase string
	APIKey            string // web API key, needed for password sign-in
	// Emulator support for integration testing
	UseEmulator           bool
	EmulatorAuthHost      string
	EmulatorFirestoreHost string
}

type JWTConfig struct {
	SigningKey string // Secret key for JWT signing
	Issuer     string // JWT issuer claim
	TTLMinutes int    // session token lifetime (default: 720 = 12 hours)
}

type KafkaConfig struct {
	Brokers []string // empty disables notifications
	Topic   string
}

type TelnyxConfig struct {
	APIKey      string
	FromNumber  string
	CountryCode string // applied to 10-digit local numbers (default: 91)
}

type SubmitConfig struct {
	RatePerMinute int // per-user submission rate
	Burst         int
}

// Load returns application configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Store: StoreConfig{
			Backend:    getEnv("STORE_BACKEND", BackendSQLite),
			SQLitePath: getEnv("SQLITE_PATH", "ewaste.db"),
		},
		Firebase: FirebaseConfig{
			ProjectID:             getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath:       getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			FirestoreDatabase:     getEnv("FIRESTORE_DATABASE", "(default)"),
			APIKey:                getEnv("FIREBASE_API_KEY", ""),
			UseEmulator:           getEnvBool("USE_FIREBASE_EMULATOR", false),
			EmulatorAuthHost:      getEnv("FIREBASE_AUTH_EMULATOR_HOST", "localhost:9099"),
			EmulatorFirestoreHost: getEnv("FIRESTORE_EMULATOR_HOST", "localhost:8080"),
		},
		JWT: JWTConfig{
			SigningKey: getEnv("JWT_SIGNING_KEY", ""),
			Issuer:     getEnv("JWT_ISSUER", "ewaste"),
			TTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 720),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "sms-outbox"),
		},
		Telnyx: TelnyxConfig{
			APIKey:      getEnv("TELNYX_API_KEY", ""),
			FromNumber:  getEnv("TELNYX_FROM_NUMBER", ""),
			CountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),
		},
		Submit: SubmitConfig{
			RatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 10),
			Burst:         getEnvInt("SUBMIT_BURST", 3),
		},
	}
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// SessionTTL is the lifetime of issued session tokens.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.JWT.TTLMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
