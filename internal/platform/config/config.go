package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures everything main needs to wire the service.
type Server struct {
	Addr              string
	DatabaseURL       string
	MappingPath       string
	CommunesCSVPath   string
	CadastralLayer    string
	ArtifactDir       string
	GeminiAPIKey      string
	GeminiModel       string
	CompletionTimeout time.Duration

	// SMTP relay for completion notifications. Notifications stay disabled
	// while SMTPHost is empty.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:              envOr("URBACERT_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MappingPath:       envOr("URBACERT_MAPPING_PATH", "mapping.json"),
		CommunesCSVPath:   envOr("URBACERT_COMMUNES_CSV", "communes.csv"),
		CadastralLayer:    envOr("URBACERT_CADASTRAL_LAYER", "cadastre.parcelles"),
		ArtifactDir:       envOr("URBACERT_ARTIFACT_DIR", "artifacts"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       os.Getenv("URBACERT_GEMINI_MODEL"),
		CompletionTimeout: 30 * time.Second,
	}
	if raw := os.Getenv("URBACERT_COMPLETION_TIMEOUT_S"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.CompletionTimeout = time.Duration(secs) * time.Second
		}
	}
	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 {
			cfg.SMTPPort = port
		}
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.SMTPPassword = os.Getenv("SMTP_PASS")
	cfg.MailFrom = os.Getenv("MAIL_FROM")
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
