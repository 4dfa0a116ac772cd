package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api"
)

const (
	defaultAccessTokenTTL = 15 * time.Minute
	defaultResetTokenTTL  = 15 * time.Minute

	// resetTokenType discriminates password-reset tokens from access tokens
	// even if the two signing secrets were ever misconfigured to match.
	resetTokenType = "PASSWORD_REQUEST"
)

// Claims is the decoded payload of a bearer token: identity plus a frozen
// snapshot of the user's scopes at issuance time. IsSuperAdmin is a pointer so
// verification can tell an absent claim from an explicit false.
type Claims struct {
	UserID       string        `json:"id"`
	Email        string        `json:"email"`
	IsActive     bool          `json:"is_active"`
	IsSuperAdmin *bool         `json:"is_super_admin"`
	Roles        []api.RoleRef `json:"roles"`
	Scopes       []string      `json:"scopes"`
	jwt.RegisteredClaims
}

// SuperAdmin reports the snapshot super-admin flag.
func (c *Claims) SuperAdmin() bool {
	return c.IsSuperAdmin != nil && *c.IsSuperAdmin
}

type resetClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies the two token classes. Access tokens and
// password-reset tokens are signed with distinct secrets.
type TokenService struct {
	cfg config.JWTConfig
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{cfg: cfg}
}

func (s *TokenService) signingMethod() jwt.SigningMethod {
	alg := s.cfg.Algorithm
	if alg == "" {
		alg = "HS256"
	}
	return jwt.GetSigningMethod(alg)
}

// IssueAccessToken signs a bearer token carrying the user's identity and the
// flattened union of their assigned roles' scopes plus "me".
func (s *TokenService) IssueAccessToken(u api.UserWithRoles) (string, error) {
	ttl := s.cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	roleRefs := make([]api.RoleRef, 0, len(u.Roles))
	for _, role := range u.Roles {
		roleRefs = append(roleRefs, api.RoleRef{Title: role.Title, ID: role.ID.String()})
	}

	isSuperAdmin := u.User.IsSuperAdmin
	now := time.Now()
	claims := &Claims{
		UserID:       u.User.ID.String(),
		Email:        u.User.Email,
		IsActive:     u.User.IsActive,
		IsSuperAdmin: &isSuperAdmin,
		Roles:        roleRefs,
		Scopes:       u.Scopes(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.User.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(s.signingMethod(), claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses and validates a bearer token. Any signature,
// expiry or structural failure maps to ErrUnauthenticated; the subject id,
// email and super-admin flag are required claims.
func (s *TokenService) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	}, jwt.WithValidMethods([]string{s.signingMethod().Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token has expired", api.ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", api.ErrUnauthenticated)
		default:
			return nil, fmt.Errorf("%w: %v", api.ErrUnauthenticated, err)
		}
	}

	if claims.Subject == "" || claims.Email == "" || claims.IsSuperAdmin == nil {
		return nil, fmt.Errorf("%w: required claims missing", api.ErrUnauthenticated)
	}
	return claims, nil
}

// IssueResetToken signs a single-purpose password-reset token for the user.
// The caller is responsible for recording it as the user's current reset
// token; verification alone does not make it redeemable.
func (s *TokenService) IssueResetToken(userID uuid.UUID) (string, error) {
	ttl := s.cfg.ResetTokenTTL
	if ttl <= 0 {
		ttl = defaultResetTokenTTL
	}

	claims := &resetClaims{
		Type: resetTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(s.signingMethod(), claims)
	signed, err := token.SignedString([]byte(s.cfg.ResetSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// VerifyResetToken validates a password-reset token against the reset signing
// context and returns the subject user id.
func (s *TokenService) VerifyResetToken(tokenString string) (uuid.UUID, error) {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.ResetSecretKey), nil
	}, jwt.WithValidMethods([]string{s.signingMethod().Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("%w: the token has expired, please generate a new one", api.ErrUnauthenticated)
		}
		return uuid.Nil, fmt.Errorf("%w: there is something wrong with the token", api.ErrUnauthenticated)
	}

	if claims.Type != resetTokenType || claims.Subject == "" {
		return uuid.Nil, fmt.Errorf("%w: there is something wrong with the token", api.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: there is something wrong with the token", api.ErrUnauthenticated)
	}
	return userID, nil
}
