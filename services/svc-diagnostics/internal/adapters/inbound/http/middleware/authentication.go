package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/architeacher/diagnostics/pkg/logger"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/config"
	"github.com/architeacher/diagnostics/services/svc-diagnostics/internal/domain/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const (
	identityKey contextKey = "identity"

	accessTokenQueryParam = "access_token"
	localSubject          = "local"
)

var errMissingToken = errors.New("missing bearer token")

// Claims is the token payload. Roles carries the caller's role names.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	enabled   bool
	secret    []byte
	adminRole string
	parser    *jwt.Parser
}

func NewAuthenticator(cfg config.Auth, log logger.Logger) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}

	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	if !cfg.Enabled {
		log.Warn().Msg("authentication disabled, every request acts as a local admin")
	}

	return &Authenticator{
		enabled:   cfg.Enabled,
		secret:    []byte(cfg.SecretKey),
		adminRole: cfg.AdminRole,
		parser:    jwt.NewParser(opts...),
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			identity := model.Identity{Subject: localSubject, Roles: []string{model.RoleAdmin}}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))

			return
		}

		identity, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="svc-diagnostics"`)
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())

			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// Authenticate verifies the bearer token of the request. Websocket handshakes may
// pass the token as a query parameter since browsers cannot set headers on them.
func (a *Authenticator) Authenticate(r *http.Request) (model.Identity, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return model.Identity{}, err
	}

	claims := &Claims{}

	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc); err != nil {
		return model.Identity{}, errors.New("invalid or expired token")
	}

	if claims.Subject == "" {
		return model.Identity{}, errors.New("token has no subject")
	}

	roles := slices.Clone(claims.Roles)
	if a.adminRole != "" && a.adminRole != model.RoleAdmin && slices.Contains(roles, a.adminRole) {
		roles = append(roles, model.RoleAdmin)
	}

	return model.Identity{Subject: claims.Subject, Roles: roles}, nil
}

func (a *Authenticator) keyFunc(*jwt.Token) (any, error) {
	return a.secret, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if token := r.URL.Query().Get(accessTokenQueryParam); token != "" {
				return token, nil
			}
		}

		return "", errMissingToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid authorization header format")
	}

	return strings.TrimSpace(token), nil
}

func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	ctx = context.WithValue(ctx, logger.ContextKeySubject, identity.Subject)

	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller verified by the Authenticator.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(model.Identity)

	return identity, ok
}
