package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateDOB(t *testing.T) {
	t.Parallel()

	assert.Error(t, validateDOB("not-a-date"))
	assert.Error(t, validateDOB("01-01-1990"))

	// Too young
	young := time.Now().AddDate(-10, 0, 0).Format("2006-01-02")
	assert.Error(t, validateDOB(young))

	// Implausibly old
	assert.Error(t, validateDOB("1850-01-01"))

	adult := time.Now().AddDate(-30, 0, 0).Format("2006-01-02")
	assert.NoError(t, validateDOB(adult))

	exactly13 := time.Now().AddDate(-13, 0, 0).Format("2006-01-02")
	assert.NoError(t, validateDOB(exactly13))
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Alice", sanitizeName("  Alice  "))
	assert.Equal(t, "scriptalert(1)/script", sanitizeName("<script>alert(1)</script>"))
	assert.Equal(t, "Bob", sanitizeName("B<o>b"))
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "alice@example.com", normalizeEmail(" Alice@Example.COM "))
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 198.51.100.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestEmailPattern(t *testing.T) {
	t.Parallel()

	valid := []string{"a@b.co", "first.last@sub.example.com", "x+tag@example.org"}
	for _, e := range valid {
		assert.True(t, emailPattern.MatchString(e), fmt.Sprintf("%q should be valid", e))
	}

	invalid := []string{"", "plain", "@example.com", "a@b", "a b@c.com", "a@b c.com"}
	for _, e := range invalid {
		assert.False(t, emailPattern.MatchString(e), fmt.Sprintf("%q should be invalid", e))
	}
}
