package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core"
	"github.com/trezcool/nidhamu/core/user"
)

const (
	tokenContextKey = "userToken"
	actorContextKey = "actor"
	tokenAudience   = "Academia"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the identity provider; this API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Name       string   `json:"name,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	RollNumber string   `json:"roll_number,omitempty"` // -> STUDENT PORTAL
	Grade      string   `json:"grade,omitempty"`       // -> TEACHER PORTAL
	Section    string   `json:"section,omitempty"`     // -> TEACHER PORTAL
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// GetActorClaims returns the claims identifying actor.
func GetActorClaims(actor user.Actor, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   actor.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:       actor.Name,
		Roles:      actor.Roles,
		RollNumber: actor.RollNumber,
		Grade:      actor.Grade,
		Section:    actor.Section,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (c Claims) actor() user.Actor {
	return user.Actor{
		ID:         c.Subject,
		Name:       c.Name,
		Roles:      c.Roles,
		RollNumber: c.RollNumber,
		Grade:      c.Grade,
		Section:    c.Section,
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (user.Actor, error) {
	if actor, ok := ctx.Get(actorContextKey).(user.Actor); ok {
		return actor, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.Actor{}, errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == "" {
		return user.Actor{}, errUnauthorized
	}
	actor := claims.actor()
	ctx.Set(actorContextKey, actor)
	return actor, nil
}
