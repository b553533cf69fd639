package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/user"
)

// actorMiddleware lets through actors accepted by any of checks.
func actorMiddleware(checks ...func(user.Actor) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			for _, check := range checks {
				if check(actor) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

var (
	privilegedMiddleware = actorMiddleware(user.Actor.IsPrivileged)
	studentMiddleware    = actorMiddleware(user.Actor.IsStudent)
	parentMiddleware     = actorMiddleware(user.Actor.IsParent)
	staffMiddleware      = actorMiddleware(user.Actor.IsTeacher, user.Actor.IsPrivileged)
)
