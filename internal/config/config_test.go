package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5), cfg.Server.MaxUploadSizeMB)
	assert.Equal(t, int64(5*1024*1024), cfg.Server.MaxUploadBytes())
	assert.Equal(t, 800, cfg.Image.TargetHeight)
	assert.Equal(t, 80, cfg.Image.Quality)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouter.BaseURL)
	assert.Equal(t, 300, cfg.OpenRouter.VisionMaxTokens)
	assert.Equal(t, 60*time.Second, cfg.OpenRouter.VisionTimeout)
	assert.Equal(t, 90*time.Second, cfg.OpenRouter.GenerationTimeout)
	assert.False(t, cfg.Firebase.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "8")
	t.Setenv("IMAGE_TARGET_HEIGHT", "600")
	t.Setenv("VISION_TIMEOUT", "15s")
	t.Setenv("PLAN_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(8), cfg.Server.MaxUploadSizeMB)
	assert.Equal(t, 600, cfg.Image.TargetHeight)
	assert.Equal(t, 15*time.Second, cfg.OpenRouter.VisionTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Server.PlanCacheTTL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{MaxUploadSizeMB: 5},
			Image:      ImageConfig{TargetHeight: 800, Quality: 80},
			OpenRouter: OpenRouterConfig{APIKey: "k"},
			JWT:        JWTConfig{Secret: "s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.OpenRouter.APIKey = "" }, wantErr: "OPENROUTER_API_KEY"},
		{name: "no auth", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "JWT_SECRET"},
		{
			name: "firebase only",
			mutate: func(c *Config) {
				c.JWT.Secret = ""
				c.Firebase = FirebaseConfig{ProjectID: "p", PrivateKey: "k", ClientEmail: "e"}
			},
		},
		{name: "bad quality", mutate: func(c *Config) { c.Image.Quality = 0 }, wantErr: "IMAGE_QUALITY"},
		{name: "bad height", mutate: func(c *Config) { c.Image.TargetHeight = -1 }, wantErr: "IMAGE_TARGET_HEIGHT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
