package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/nidhamu/core/template"
	"github.com/trezcool/nidhamu/core/user"
)

type (
	templateApi struct {
		svc *template.Service
	}

	templateOp func(ctx context.Context, id string, actor user.Actor) (template.Template, error)
)

func registerTemplateAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *template.Service) {
	api := templateApi{svc: svc}

	tg := g.Group("/templates", jwt)
	tg.GET("/default", api.retrieveDefault)
	tg.GET("/:id", api.retrieve)

	// administration
	tg.GET("", api.query, privilegedMiddleware)
	tg.POST("", api.create, privilegedMiddleware)
	tg.PUT("/:id", api.update, privilegedMiddleware)
	tg.DELETE("/:id", api.destroy, privilegedMiddleware)
	tg.POST("/:id/clone", api.clone, privilegedMiddleware)
	tg.POST("/:id/toggle-active", api.toggleActive, privilegedMiddleware)
	tg.POST("/:id/set-default", api.setDefault, privilegedMiddleware)
	tg.GET("/:id/stats", api.stats, privilegedMiddleware)
}

// Handlers

func (api *templateApi) retrieveDefault(ctx echo.Context) error {
	tmpl, err := api.svc.GetDefault(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting default template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *templateApi) retrieve(ctx echo.Context) error {
	tmpl, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *templateApi) query(ctx echo.Context) error {
	var filter template.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to template.QueryFilter")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	tmpls, err := api.svc.Query(ctx.Request().Context(), filter, actor)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if tmpls == nil {
		tmpls = []template.Template{}
	}
	return ctx.JSON(http.StatusOK, tmpls)
}

func (api *templateApi) create(ctx echo.Context) error {
	var data template.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to template.NewTemplate")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	tmpl, err := api.svc.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *templateApi) update(ctx echo.Context) error {
	var data template.UpdateTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to template.UpdateTemplate")
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	tmpl, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *templateApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), actor); err != nil {
		return errors.Wrap(err, "deleting template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *templateApi) clone(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Clone, http.StatusCreated, "cloning template")
}

func (api *templateApi) toggleActive(ctx echo.Context) error {
	return api.transition(ctx, api.svc.ToggleActive, http.StatusOK, "toggling template")
}

func (api *templateApi) setDefault(ctx echo.Context) error {
	return api.transition(ctx, api.svc.SetAsDefault, http.StatusOK, "setting default template")
}

// transition runs one of the body-less template operations on the template in the path.
func (api *templateApi) transition(ctx echo.Context, op templateOp, code int, what string) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	tmpl, err := op(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, what)
	}
	return ctx.JSON(code, tmpl)
}

func (api *templateApi) stats(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "getting template stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
