package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	RoleScanner    = "scanner"
)

// Claims is the caller identity carried on the request context.
type Claims struct {
	Subject string
	Email   string
	Roles   []string
}

func (c *Claims) HasRole(roles ...string) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// IsAdmin covers both admin roles.
func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin, RoleSuperAdmin)
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// tokenClaims accepts both Keycloak style realm roles and a flat role
// claim.
type tokenClaims struct {
	Sub         string   `json:"sub"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Roles       []string `json:"roles"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

func (t tokenClaims) toClaims() (*Claims, error) {
	if t.Sub == "" {
		return nil, errors.New("subject claim not found in token")
	}
	roles := append([]string{}, t.RealmAccess.Roles...)
	roles = append(roles, t.Roles...)
	if t.Role != "" {
		roles = append(roles, t.Role)
	}
	return &Claims{Subject: t.Sub, Email: t.Email, Roles: roles}, nil
}

// OIDCVerifier checks tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}
	// SkipClientIDCheck: access tokens carry the API audience, not ours
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var tc tokenClaims
	if err := idToken.Claims(&tc); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return tc.toClaims()
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

type hmacClaims struct {
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RealmAccess *struct {
		Roles []string `json:"roles"`
	} `json:"realm_access,omitempty"`
	jwt.RegisteredClaims
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	var hc hmacClaims
	_, err := jwt.ParseWithClaims(rawToken, &hc, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	tc := tokenClaims{Sub: hc.Subject, Email: hc.Email, Role: hc.Role, Roles: hc.Roles}
	if hc.RealmAccess != nil {
		tc.RealmAccess.Roles = hc.RealmAccess.Roles
	}
	return tc.toClaims()
}

// Sign issues an HS256 token for subject with the given roles.
func (v *HMACVerifier) Sign(subject, email string, ttl time.Duration, roles ...string) (string, error) {
	now := time.Now()
	hc := hmacClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, hc).SignedString(v.secret)
}
