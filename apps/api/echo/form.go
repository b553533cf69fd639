package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/form"
)

type formApi struct {
	svc *form.Service
}

func registerFormAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *form.Service) {
	api := formApi{svc: svc}

	fg := g.Group("/forms", jwt)
	fg.POST("", api.create, staffMiddleware)
	fg.GET("", api.queryAdmin, privilegedMiddleware)
	fg.GET("/mine", api.queryTeacher, staffMiddleware)
	fg.GET("/student", api.queryStudent, studentMiddleware)
	fg.GET("/parent", api.queryParent, parentMiddleware)
	fg.GET("/class", api.queryClass, staffMiddleware)
	fg.GET("/stats", api.stats, staffMiddleware)

	// detail endpoints
	fg.GET("/:id", api.retrieve)
	fg.PUT("/:id", api.update)
	fg.DELETE("/:id", api.destroy, privilegedMiddleware)
	fg.POST("/:id/submit", api.submit)
	fg.POST("/:id/acknowledge/student", api.acknowledgeStudent, studentMiddleware)
	fg.POST("/:id/acknowledge/parent", api.acknowledgeParent, parentMiddleware)
	fg.POST("/:id/approve", api.approve, privilegedMiddleware)
	fg.POST("/:id/follow-up", api.followUp, staffMiddleware)
	fg.POST("/:id/document", api.regenerateDocument, staffMiddleware)
}

func formList(forms []form.Form) []form.Form {
	if forms == nil {
		return []form.Form{}
	}
	return forms
}

// Handlers

func (api *formApi) create(ctx echo.Context) error {
	var data form.NewForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.NewForm")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating form")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *formApi) retrieve(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "getting form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) update(ctx echo.Context) error {
	var data form.UpdateForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.UpdateForm")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), actor); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *formApi) submit(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "submitting form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) queryTeacher(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.ListForTeacher(ctx.Request().Context(), form.Status(ctx.QueryParam("status")), actor)
	if err != nil {
		return errors.Wrap(err, "listing teacher forms")
	}
	return ctx.JSON(http.StatusOK, formList(forms))
}

func (api *formApi) queryStudent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.ListForStudent(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing student forms")
	}
	return ctx.JSON(http.StatusOK, formList(forms))
}

func (api *formApi) queryParent(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.ListForParent(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing parent forms")
	}
	return ctx.JSON(http.StatusOK, formList(forms))
}

func (api *formApi) queryClass(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.ListForClass(ctx.Request().Context(), ctx.QueryParam("grade"), ctx.QueryParam("section"), actor)
	if err != nil {
		return errors.Wrap(err, "listing class forms")
	}
	return ctx.JSON(http.StatusOK, formList(forms))
}

func (api *formApi) queryAdmin(ctx echo.Context) error {
	var filter form.AdminFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to form.AdminFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	forms, err := api.svc.ListForAdmin(ctx.Request().Context(), filter, ord.Orderings, actor)
	if err != nil {
		return errors.Wrap(err, "listing forms")
	}
	return ctx.JSON(http.StatusOK, formList(forms))
}

func (api *formApi) stats(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), form.Period(ctx.QueryParam("period")), actor)
	if err != nil {
		return errors.Wrap(err, "getting form stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *formApi) acknowledgeStudent(ctx echo.Context) error {
	var data form.Acknowledgment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.Acknowledgment")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.StudentAcknowledge(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "acknowledging form as student")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) acknowledgeParent(ctx echo.Context) error {
	var data form.ParentAcknowledgmentInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.ParentAcknowledgmentInput")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.ParentAcknowledge(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "acknowledging form as parent")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) approve(ctx echo.Context) error {
	var data form.Approval
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.Approval")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.AdminApprove(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "approving form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) followUp(ctx echo.Context) error {
	var data form.FollowUp
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to form.FollowUp")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	f, err := api.svc.AddFollowUp(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "adding follow-up")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formApi) regenerateDocument(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	f, err := api.svc.RegenerateDocument(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "regenerating document")
	}
	return ctx.JSON(http.StatusOK, f)
}
