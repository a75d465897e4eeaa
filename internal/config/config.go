package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// StoreBackend selects the persistent store: memory, dynamodb, postgres or firestore.
	StoreBackend      string
	SeedOnStartup     bool
	DatabaseURL       string
	PatientsTable     string
	AppointmentsTable string

	FirestoreProjectID       string
	FirestoreCredentialsFile string

	ClinicTimezone string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// LLM collaborators. Bedrock is primary when a model id is set; Gemini is
	// the fallback (or the only client when Bedrock is unset).
	LLMProvider    string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModel    string
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DraftTTL      time.Duration

	EventsQueueURL string
	UseMemoryQueue bool
	// OutboxInline runs the outbox deliverer inside the API process. Turn it
	// off when cmd/outbox-worker is deployed.
	OutboxInline   bool

	ArchiveBucket string
	AuditDatabase string

	// Email notifications to doctors on new bookings
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	// NotifyInline sends booking emails from the API. When false the
	// notify-lambda consumer sends them from the events queue.
	NotifyInline      bool

	// Staff sign-in. Cognito tokens are accepted when a user pool is set;
	// HMAC tokens signed with AuthJWTSecret are accepted otherwise.
	CognitoRegion     string
	CognitoUserPoolID string
	CognitoClientID   string

	AuthJWTSecret      string
	// OpsToken guards operational endpoints such as seeding. Empty disables them.
	OpsToken           string
	CORSAllowedOrigins []string
	// CORSAllowedHeaders are allowed in addition to the headers the API reads.
	CORSAllowedHeaders []string
	CORSMaxAge         time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend:      strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "memory"))),
		SeedOnStartup:     getEnvAsBool("SEED_ON_STARTUP", true),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		PatientsTable:     getEnv("PATIENTS_TABLE", "medisync_patients"),
		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", "medisync_appointments"),

		FirestoreProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "UTC"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "auto"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 1024),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DraftTTL:      getEnvAsDuration("DRAFT_TTL", 2*time.Hour),

		EventsQueueURL: getEnv("EVENTS_QUEUE_URL", ""),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		OutboxInline:   getEnvAsBool("OUTBOX_INLINE", true),

		ArchiveBucket: getEnv("PRESCRIPTION_ARCHIVE_BUCKET", ""),
		AuditDatabase: getEnv("AUDIT_DATABASE_URL", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "MediSync"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		NotifyInline:      getEnvAsBool("NOTIFY_INLINE", true),

		CognitoRegion:     getEnv("COGNITO_REGION", getEnv("AWS_REGION", "us-east-1")),
		CognitoUserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:   getEnv("COGNITO_CLIENT_ID", ""),

		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		OpsToken:           getEnv("OPS_TOKEN", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS", nil),
		CORSMaxAge:         getEnvAsDuration("CORS_MAX_AGE", 10*time.Minute),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// AuditDSN returns the DSN used for the clinical audit log, falling back to
// the primary database.
func (c *Config) AuditDSN() string {
	if c.AuditDatabase != "" {
		return c.AuditDatabase
	}
	return c.DatabaseURL
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
