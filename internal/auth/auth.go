// Package auth issues and checks bearer tokens and password hashes, and
// carries the signed-in identity through a context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const issuerName = "pastelcal"

// Identity is the signed-in user. Username doubles as the event owner id.
type Identity struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

// CurrentOwner reports the owner id, or false when nobody is signed in.
func (i Identity) CurrentOwner() (string, bool) {
	return i.Username, i.Username != ""
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims are the token claims. Subject carries the username.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs an HS256 token for the user and returns it with its expiry.
func (is *Issuer) Issue(u model.User) (string, time.Time, error) {
	now := is.now()
	exp := now.Add(is.ttl)
	claims := Claims{
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(is.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Verify parses tok, accepting only HS256 tokens from this issuer.
func (is *Issuer) Verify(tok string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return is.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(is.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return Identity{Username: claims.Subject, Name: claims.Name}, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrAuthRequired
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return strings.TrimSpace(parts[1]), nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Username != ""
}

// OwnerFrom returns the owner id of the signed-in user or ErrAuthRequired.
func OwnerFrom(ctx context.Context) (string, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return "", ErrAuthRequired
	}
	return id.Username, nil
}

// Directory resolves usernames to accounts. A missing account is
// store.ErrNotFound.
type Directory interface {
	Lookup(ctx context.Context, username string) (model.User, error)
}

// StaticDirectory serves accounts listed in the configuration file.
type StaticDirectory map[string]model.User

func NewStaticDirectory(users ...model.User) StaticDirectory {
	d := make(StaticDirectory, len(users))
	for _, u := range users {
		d[u.Username] = u
	}
	return d
}

func (d StaticDirectory) Lookup(_ context.Context, username string) (model.User, error) {
	u, ok := d[username]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

// Chain asks each directory in turn and returns the first hit.
type Chain []Directory

func (c Chain) Lookup(ctx context.Context, username string) (model.User, error) {
	for _, d := range c {
		u, err := d.Lookup(ctx, username)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return model.User{}, err
		}
	}
	return model.User{}, store.ErrNotFound
}

// Login checks a username/password pair against dir.
func Login(ctx context.Context, dir Directory, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, ErrInvalidCredentials
	}
	u, err := dir.Lookup(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}
