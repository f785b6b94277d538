package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jsvoboda/notes-api/internal/config"
)

const (
	googleAuthEndpoint  = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenEndpoint = "https://oauth2.googleapis.com/token"
	googleJWKSEndpoint  = "https://www.googleapis.com/oauth2/v3/certs"

	jwksCacheTTL = time.Hour
)

// GoogleService exchanges an authorization code for a verified Google
// identity. Unlike the usual shortcut of decoding the ID token payload
// unchecked, the token's RS256 signature is verified against Google's
// published JWKS before any claim is trusted.
type GoogleService struct {
	clientID     string
	clientSecret string
	redirectURI  string

	httpClient    *http.Client
	authEndpoint  string
	tokenEndpoint string
	jwksEndpoint  string

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	keysFetched time.Time
}

func NewGoogleService(cfg config.GoogleConfig) *GoogleService {
	return &GoogleService{
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		redirectURI:   cfg.RedirectURI,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		authEndpoint:  googleAuthEndpoint,
		tokenEndpoint: googleTokenEndpoint,
		jwksEndpoint:  googleJWKSEndpoint,
	}
}

// AuthURL builds the authorization URL the frontend redirects the user to.
func (s *GoogleService) AuthURL() string {
	query := url.Values{}
	query.Set("client_id", s.clientID)
	query.Set("redirect_uri", s.redirectURI)
	query.Set("response_type", "code")
	query.Set("scope", "openid email profile")
	query.Set("access_type", "offline")
	query.Set("prompt", "consent")

	return s.authEndpoint + "?" + query.Encode()
}

// Exchange trades the authorization code for tokens and returns the
// verified identity claims from the ID token.
func (s *GoogleService) Exchange(ctx context.Context, code string) (*GoogleIdentity, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("redirect_uri", s.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var payload struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.IDToken == "" {
		return nil, errors.New("token response missing id_token")
	}

	return s.verifyIDToken(ctx, payload.IDToken)
}

type googleIDClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func (s *GoogleService) verifyIDToken(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	claims := &googleIDClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(s.clientID),
	)

	token, err := parser.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("id token missing kid header")
		}
		return s.keyForKID(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("id token verification failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("id token invalid")
	}

	if claims.Issuer != "accounts.google.com" && claims.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("unexpected id token issuer %q", claims.Issuer)
	}

	return &GoogleIdentity{
		Email:         strings.ToLower(claims.Email),
		Name:          claims.Name,
		GoogleID:      claims.Subject,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// keyForKID returns the RSA public key for a JWKS key id, refetching the
// key set when the id is unknown or the cache is stale (key rotation).
func (s *GoogleService) keyForKID(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[kid]; ok && time.Since(s.keysFetched) < jwksCacheTTL {
		return key, nil
	}

	keys, err := s.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	s.keys = keys
	s.keysFetched = time.Now()

	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key for kid %q", kid)
	}
	return key, nil
}

func (s *GoogleService) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwks request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks fetch failed with status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}

		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}

		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
	}

	if len(keys) == 0 {
		return nil, errors.New("jwks contained no usable keys")
	}

	return keys, nil
}
