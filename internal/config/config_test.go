package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Addr != ":8787" {
		t.Fatalf("expected default addr :8787, got %q", cfg.Addr)
	}
	if cfg.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %v", cfg.AccessTTL)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("expected 10MiB upload limit, got %d", cfg.MaxUploadBytes)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("NYAY_ACCESS_TTL", "5m")
	t.Setenv("NYAY_PROCESSING_WORKERS", "4")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Addr != ":9999" || cfg.AccessTTL != 5*time.Minute || cfg.ProcessingWorkers != 4 || !cfg.MinioUseSSL {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestParseRejectsInvalidWorkers(t *testing.T) {
	t.Setenv("NYAY_PROCESSING_WORKERS", "0")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestOCRLanguageList(t *testing.T) {
	tests := []struct {
		spec string
		want int
	}{
		{"eng+hin", 2},
		{"", 1},
		{" eng + mar + ", 2},
	}
	for _, tt := range tests {
		got := Config{OCRLanguages: tt.spec}.OCRLanguageList()
		if len(got) != tt.want {
			t.Errorf("OCRLanguageList(%q) = %v, want %d entries", tt.spec, got, tt.want)
		}
	}
}

func TestSMTPConfigured(t *testing.T) {
	if (Config{}).SMTPConfigured() {
		t.Fatal("empty config should not be configured")
	}
	if !(Config{SMTPHost: "smtp.example.com", SMTPPort: "587", SMTPFrom: "a@b.c"}).SMTPConfigured() {
		t.Fatal("expected configured")
	}
}

func TestParseEmptyBackendsStayDisabled(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "MEILI_URL", "MEILI_MASTER_KEY", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RedisURL != "" || cfg.MeiliURL != "" || cfg.MinioEndpoint != "" || cfg.MinioAccessKey != "" {
		t.Fatalf("expected optional backends to stay empty, got redis=%q meili=%q minio=%q", cfg.RedisURL, cfg.MeiliURL, cfg.MinioEndpoint)
	}
}

func TestParseDevModeIsOptIn(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.DevMode {
		t.Fatal("dev mode must default to off")
	}

	t.Setenv("NYAY_DEV_MODE", "true")
	cfg, err = Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !cfg.DevMode {
		t.Fatal("expected NYAY_DEV_MODE=true to enable dev mode")
	}
}
