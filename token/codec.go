package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates the two token kinds carried in the `typ` claim.
type Type string

const (
	// TypeAccess marks short-lived tokens authorizing individual API calls.
	TypeAccess Type = "access"
	// TypeRefresh marks longer-lived tokens used solely to obtain new pairs.
	TypeRefresh Type = "refresh"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared process-wide secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrExpired is returned by Verify when the token is valid but past exp.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned by Verify for every non-expiry failure: bad
	// signature, unrecognized structure, wrong algorithm, or wrong token type.
	ErrInvalid = errors.New("token invalid")
)

// Config holds signing material and lifetimes. Instances are treated as
// immutable after [NewCodec].
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	// PrivateKey is the HS256 secret or the Ed25519 private key (raw or PEM).
	PrivateKey []byte
	// PublicKey is the Ed25519 public key (raw or PEM); unused for HS256.
	PublicKey []byte
	Issuer    string
	Leeway    time.Duration
}

// Claims is the payload embedded in every issued token.
type Claims struct {
	Role      string `json:"role"`
	TokenType Type   `json:"typ"`
	jwt.RegisteredClaims
}

// Codec signs and verifies token pairs. Safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("token: access TTL must be shorter than refresh TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("token: hs256 requires a signing secret")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("token: unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// Issue signs a token of the given type for identityID carrying a role
// snapshot taken now. The returned string is safe in JSON bodies and URL query
// parameters without additional escaping.
func (c *Codec) Issue(identityID, role string, typ Type) (string, error) {
	if typ != TypeAccess && typ != TypeRefresh {
		return "", errors.New("token: unknown token type")
	}

	ttl := c.config.AccessTTL
	if typ == TypeRefresh {
		ttl = c.config.RefreshTTL
	}

	now := time.Now()
	claims := Claims{
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    c.config.Issuer,
			// The jti makes every issuance unique, which refresh rotation
			// depends on: two pairs minted in the same second must not
			// collide in the store.
			ID: uuid.NewString(),
		},
	}

	signKey, err := c.signKey()
	if err != nil {
		return "", err
	}

	return jwt.NewWithClaims(c.method(), claims).SignedString(signKey)
}

// Verify checks signature integrity, expiry, and token type. On success the
// embedded claims are returned; failures map to ErrExpired or ErrInvalid and
// nothing else, so callers cannot leak which check failed.
func (c *Codec) Verify(raw string, typ Type) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if claims.TokenType != typ {
		return nil, ErrInvalid
	}
	if claims.Subject == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}

func (c *Codec) method() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) signKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) verifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.PrivateKey, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
