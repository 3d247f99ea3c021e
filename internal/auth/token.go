// Package auth verifies bearer tokens and resolves them to accounts.
//
// Tokens are compact HS256 JWTs carrying the standard subject, issuer and
// expiry claims plus email, username and role. The service does not run a
// login flow of its own; Issuer exists for tests and local development.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"colorbet/internal/account"
	"colorbet/internal/apperr"
)

const MinSecretLength = 32

var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthorized)

type profileClaims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(secret []byte, issuer string, leeway time.Duration) (*Verifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth secret must be at least %d bytes", MinSecretLength)
	}
	return &Verifier{secret: secret, issuer: issuer, leeway: leeway, now: time.Now}, nil
}

// Verify checks signature, issuer and validity window and returns the
// identity the token asserts.
func (v *Verifier) Verify(raw string) (account.Identity, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return account.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var (
		std     jwt.Claims
		profile profileClaims
	)
	if err := tok.Claims(v.secret, &std, &profile); err != nil {
		return account.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if std.Expiry == nil {
		return account.Identity{}, fmt.Errorf("%w: token has no expiry", ErrInvalidToken)
	}
	err = std.ValidateWithLeeway(jwt.Expected{Issuer: v.issuer, Time: v.now()}, v.leeway)
	if err != nil {
		return account.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if std.Subject == "" {
		return account.Identity{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return account.Identity{
		ID:       std.Subject,
		Email:    profile.Email,
		Username: profile.Username,
		Role:     account.Role(profile.Role),
	}, nil
}

type Issuer struct {
	signer jose.Signer
	issuer string
	now    func() time.Time
}

func NewIssuer(secret []byte, issuer string) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth secret must be at least %d bytes", MinSecretLength)
	}
	sig, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return &Issuer{signer: sig, issuer: issuer, now: time.Now}, nil
}

func (i *Issuer) Sign(id account.Identity, ttl time.Duration) (string, error) {
	if id.ID == "" {
		return "", errors.New("identity has no id")
	}
	now := i.now()
	std := jwt.Claims{
		Subject:   id.ID,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(ttl)),
	}
	profile := profileClaims{Email: id.Email, Username: id.Username, Role: string(id.Role)}

	raw, err := jwt.Signed(i.signer).Claims(std).Claims(profile).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}
