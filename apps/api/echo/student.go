package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/student"
)

type studentApi struct {
	mirror *student.Mirror
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, mirror *student.Mirror) {
	api := studentApi{mirror: mirror}

	sg := g.Group("/students/:id/actions", jwt)
	sg.GET("", api.history)
	sg.POST("/:actionId/respond", api.respond)
}

// Handlers

func (api *studentApi) history(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	actions, err := api.mirror.History(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "getting disciplinary history")
	}
	if actions == nil {
		actions = []student.DisciplinaryAction{}
	}
	return ctx.JSON(http.StatusOK, actions)
}

// respond records the answer of the student, or of a linked parent, to a disciplinary action.
func (api *studentApi) respond(ctx echo.Context) error {
	var data student.Response
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to student.Response")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	reqCtx, studentID, actionID := ctx.Request().Context(), ctx.Param("id"), ctx.Param("actionId")
	var action student.DisciplinaryAction
	switch {
	case actor.IsStudent():
		action, err = api.mirror.RespondAsStudent(reqCtx, studentID, actionID, data, actor)
	case actor.IsParent():
		action, err = api.mirror.RespondAsParent(reqCtx, studentID, actionID, data, actor)
	default:
		return errHttpForbidden
	}
	if err != nil {
		return errors.Wrap(err, "responding to disciplinary action")
	}
	return ctx.JSON(http.StatusOK, action)
}
