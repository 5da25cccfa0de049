package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// AWS
	AWSRegion    string
	SESFromEmail string
	SNSRegion    string
	SQSRegion    string
	SQSQueueURL  string

	// SMS number normalization
	SMSCountryCode string
	SMSTrunkPrefix string
	SMSLocalLength int
	SMSSenderID    string

	// WhatsApp Cloud API
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	WhatsAppBaseURL       string

	// CronSecret authorizes the /v1/cron endpoints.
	CronSecret string

	// Background loops
	DispatchInterval  time.Duration
	DispatchBatchSize int
	ReminderInterval  time.Duration

	// Rate limiting (requests per tenant per minute)
	RateLimit int
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "vetly",
		DBPassword: "",
		DBName:     "vetly",
		DBSSLMode:  "disable",

		RedisHost: "localhost",
		RedisPort: 6379,

		AWSRegion:    "us-east-1",
		SESFromEmail: "avisos@vetly.local",

		SMSCountryCode: "52",
		SMSTrunkPrefix: "0",
		SMSLocalLength: 10,

		DispatchInterval:  5 * time.Second,
		DispatchBatchSize: 10,
		ReminderInterval:  5 * time.Minute,

		RateLimit: 120,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}
	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}
	if region := os.Getenv("SNS_REGION"); region != "" {
		cfg.SNSRegion = region
	} else {
		cfg.SNSRegion = cfg.AWSRegion
	}
	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}
	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
	}

	if code := os.Getenv("SMS_COUNTRY_CODE"); code != "" {
		cfg.SMSCountryCode = code
	}
	if prefix := os.Getenv("SMS_TRUNK_PREFIX"); prefix != "" {
		cfg.SMSTrunkPrefix = prefix
	}
	if length := os.Getenv("SMS_LOCAL_LENGTH"); length != "" {
		l, err := strconv.Atoi(length)
		if err != nil {
			return nil, fmt.Errorf("invalid SMS_LOCAL_LENGTH: %w", err)
		}
		cfg.SMSLocalLength = l
	}
	if id := os.Getenv("SMS_SENDER_ID"); id != "" {
		cfg.SMSSenderID = id
	}

	if token := os.Getenv("WHATSAPP_TOKEN"); token != "" {
		cfg.WhatsAppToken = token
	}
	if id := os.Getenv("WHATSAPP_PHONE_NUMBER_ID"); id != "" {
		cfg.WhatsAppPhoneNumberID = id
	}
	if url := os.Getenv("WHATSAPP_BASE_URL"); url != "" {
		cfg.WhatsAppBaseURL = url
	}

	if secret := os.Getenv("CRON_SECRET"); secret != "" {
		cfg.CronSecret = secret
	}

	if interval := os.Getenv("DISPATCH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_INTERVAL: %w", err)
		}
		cfg.DispatchInterval = d
	}
	if size := os.Getenv("DISPATCH_BATCH_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_BATCH_SIZE: %w", err)
		}
		cfg.DispatchBatchSize = s
	}
	if interval := os.Getenv("REMINDER_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid REMINDER_INTERVAL: %w", err)
		}
		cfg.ReminderInterval = d
	}

	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = l
	}

	return cfg, nil
}
