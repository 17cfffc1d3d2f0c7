package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// GoogleSecureTokenCertsURL serves the x509 certificates that sign Firebase ID tokens, keyed by kid.
const GoogleSecureTokenCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultKeyTTL = time.Hour

// minKeyRefresh bounds how often an unknown kid can force a refetch of a still-valid key set.
const minKeyRefresh = time.Minute

// FirebaseClaims is the subset of Firebase ID token claims the service reads.
type FirebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// FirebaseVerifier validates Firebase ID tokens against Google's published signing keys.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client

	fetch     singleflight.Group
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
}

// FirebaseOption customises a FirebaseVerifier.
type FirebaseOption func(*FirebaseVerifier)

// WithCertsURL overrides the certificate endpoint.
func WithCertsURL(url string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = url }
}

// NewFirebaseVerifier creates a verifier for tokens issued to projectID.
func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID: projectID,
		certsURL:  GoogleSecureTokenCertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks signature, audience, issuer and expiry, and returns the caller identity.
func (v *FirebaseVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.publicKey(ctx, kid)
	}

	token, err := jwt.ParseWithClaims(tokenString, &FirebaseClaims{}, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*FirebaseClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}

func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok, needFetch := v.lookup(kid)
	if ok {
		return key, nil
	}

	if needFetch {
		// Concurrent misses share one fetch. The fetch outlives a cancelled caller.
		_, err, _ := v.fetch.Do("certs", func() (interface{}, error) {
			if _, _, again := v.lookup(kid); !again {
				return nil, nil
			}
			return nil, v.refreshKeys(context.WithoutCancel(ctx))
		})
		if err != nil {
			return nil, err
		}
		if key, ok, _ = v.lookup(kid); ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

// lookup returns the cached key for kid. needFetch reports whether a miss
// should hit the certs endpoint: always once the key set expired, and for an
// unknown kid only after minKeyRefresh since the last fetch.
func (v *FirebaseVerifier) lookup(kid string) (key *rsa.PublicKey, ok, needFetch bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	now := time.Now()
	fresh := now.Before(v.expiresAt)
	key, ok = v.keys[kid]
	if ok && fresh {
		return key, true, false
	}
	return nil, false, !fresh || now.Sub(v.fetchedAt) >= minKeyRefresh
}

func (v *FirebaseVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certs: unexpected status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode signing certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemCert := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemCert))
		if err != nil {
			return fmt.Errorf("parse signing cert %q: %w", kid, err)
		}
		keys[kid] = key
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.expiresAt = v.fetchedAt.Add(maxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()
	return nil
}

// maxAge extracts max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultKeyTTL
}
