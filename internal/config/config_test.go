package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret-value")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-value")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredSecrets(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, TokenSchemeJWT, cfg.Auth.TokenScheme)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, http.SameSiteLaxMode, cfg.Auth.CookieSameSite)
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
}

func TestLoad_MissingAccessSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-value")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_MissingRefreshSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "access-secret-value")
	t.Setenv("JWT_REFRESH_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_REFRESH_SECRET")
}

func TestLoad_IdenticalSecretsRejected(t *testing.T) {
	t.Setenv("JWT_SECRET", "same-secret")
	t.Setenv("JWT_REFRESH_SECRET", "same-secret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestLoad_PasetoKeyLength(t *testing.T) {
	t.Setenv("TOKEN_SCHEME", "paseto")
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("JWT_REFRESH_SECRET", "also-too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("JWT_REFRESH_SECRET", "fedcba9876543210fedcba9876543210")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TokenSchemePaseto, cfg.Auth.TokenScheme)
}

func TestLoad_UnknownTokenScheme(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("TOKEN_SCHEME", "wax-seal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SCHEME")
}

func TestDatabaseConfig_URLs(t *testing.T) {
	t.Parallel()

	db := DatabaseConfig{
		Host: "dbhost", Port: "5433", User: "app", Password: "pw",
		DBName: "notes", SSLMode: "disable",
	}

	assert.Equal(t, "host=dbhost port=5433 user=app password=pw dbname=notes sslmode=disable", db.ConnectionString())
	assert.Equal(t, "postgres://app:pw@dbhost:5433/notes?sslmode=disable", db.URL())
}

func TestParseSameSite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("strict"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("lax"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("anything-else"))
}

func TestTrustedOriginsParsing(t *testing.T) {
	setRequiredSecrets(t)
	t.Setenv("TRUSTED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.TrustedOrigins)
}
