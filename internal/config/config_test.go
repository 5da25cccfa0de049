package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 {
		t.Errorf("db defaults = %s:%d", cfg.DBHost, cfg.DBPort)
	}
	if cfg.SMSCountryCode != "52" || cfg.SMSLocalLength != 10 {
		t.Errorf("sms defaults = %s/%d", cfg.SMSCountryCode, cfg.SMSLocalLength)
	}
	if cfg.DispatchInterval != 5*time.Second || cfg.DispatchBatchSize != 10 {
		t.Errorf("dispatch defaults = %v/%d", cfg.DispatchInterval, cfg.DispatchBatchSize)
	}
	if cfg.ReminderInterval != 5*time.Minute {
		t.Errorf("reminder interval = %v", cfg.ReminderInterval)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_NAME", "vetly_test")
	t.Setenv("SNS_REGION", "us-west-2")
	t.Setenv("WHATSAPP_TOKEN", "tok")
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("DISPATCH_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.DBName != "vetly_test" {
		t.Errorf("db name = %s", cfg.DBName)
	}
	if cfg.SNSRegion != "us-west-2" {
		t.Errorf("sns region = %s", cfg.SNSRegion)
	}
	if cfg.WhatsAppToken != "tok" || cfg.CronSecret != "s3cret" {
		t.Error("secrets not loaded")
	}
	if cfg.DispatchInterval != 30*time.Second {
		t.Errorf("dispatch interval = %v", cfg.DispatchInterval)
	}
}

func TestLoadRegionFallsBackToAWSRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SNSRegion != "eu-west-1" || cfg.SQSRegion != "eu-west-1" {
		t.Errorf("regions = %s/%s, want AWS_REGION fallback", cfg.SNSRegion, cfg.SQSRegion)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":              "not-a-number",
		"DB_PORT":           "x",
		"SMS_LOCAL_LENGTH":  "ten",
		"DISPATCH_INTERVAL": "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q accepted", key, val)
			}
		})
	}
}
