package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldAPIConfig holds the resolved settings for the upstream
// platform/well API. Callers receive it fully validated; the sync layer
// never reads the environment itself.
type FieldAPIConfig struct {
	BaseURL    string `validate:"required,url"`
	Username   string `validate:"required"`
	Password   string `validate:"required"`
	LoginPath  string `validate:"required,startswith=/"`
	ActualPath string `validate:"required,startswith=/"`
	DummyPath  string `validate:"required,startswith=/"`
	Timeout    time.Duration
}

var fieldAPIValidate = validator.New()

func LoadFieldAPIConfig() (*FieldAPIConfig, error) {
	cfg := &FieldAPIConfig{
		BaseURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("FIELD_API_BASE_URL")), "/"),
		Username:   strings.TrimSpace(os.Getenv("FIELD_API_USERNAME")),
		Password:   os.Getenv("FIELD_API_PASSWORD"),
		LoginPath:  envPath("FIELD_API_LOGIN_PATH", "/api/Account/Login"),
		ActualPath: envPath("FIELD_API_ACTUAL_PATH", "/api/PlatformWell/GetPlatformWellActual"),
		DummyPath:  envPath("FIELD_API_DUMMY_PATH", "/api/PlatformWell/GetPlatformWellDummy"),
		Timeout:    time.Duration(IntFromEnv("FIELD_API_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	if err := fieldAPIValidate.Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envPath(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}
