package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// defaultKeyTTL bounds how long verification keys are served from cache
// before the JWKS endpoint is consulted again.
const defaultKeyTTL = 5 * time.Minute

// DiscoverJWKSURL resolves an issuer's JWKS endpoint through its
// .well-known/openid-configuration document. Works against any compliant
// provider (Keycloak, Auth0, Okta, Azure AD).
func DiscoverJWKSURL(issuer string) (string, error) {
	well := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(well)
	if err != nil {
		return "", fmt.Errorf("fetch discovery document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}
	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("discovery document missing jwks_uri")
	}
	return doc.JWKSURI, nil
}

// jwksDocument is the JSON shape served by a JWKS endpoint. Only RSA keys
// are used; other key types are skipped.
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// keyring caches RSA verification keys by key ID. An expired cache or an
// unknown ID triggers a refetch, so provider key rotation needs no restart.
type keyring struct {
	mu        sync.RWMutex
	url       string
	ttl       time.Duration
	keys      map[string]*rsa.PublicKey
	refreshed time.Time
	client    *http.Client
}

func newKeyring(url string, ttl time.Duration) *keyring {
	return &keyring{
		url:    url,
		ttl:    ttl,
		keys:   make(map[string]*rsa.PublicKey),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *keyring) verificationKey(kid string) (*rsa.PublicKey, error) {
	r.mu.RLock()
	key, ok := r.keys[kid]
	fresh := time.Since(r.refreshed) <= r.ttl
	r.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := r.refresh(); err != nil {
		return nil, fmt.Errorf("refresh JWKS: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok = r.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no key %q in JWKS", kid)
	}
	return key, nil
}

func (r *keyring) refresh() error {
	resp, err := r.client.Get(r.url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", r.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	r.mu.Lock()
	r.keys = keys
	r.refreshed = time.Now()
	r.mu.Unlock()
	return nil
}

// rsaPublicKey assembles a public key from the base64url modulus and
// exponent of a JWKS entry.
func rsaPublicKey(k jwksKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}
