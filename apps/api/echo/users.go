package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/user"
)

type authAPI struct {
	conf     *core.Config
	service  user.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := authAPI{conf: deps.Conf, service: deps.UserSvc, validate: deps.Validate}

	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.GET("/user", api.currentUser, jwt)
}

// Handlers

func (api *authAPI) register(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.service.Register(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	resp, err := newTokenResponse(usr, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *authAPI) login(ctx echo.Context) error {
	data := new(user.LoginCredentials)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.service.Authenticate(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	resp, err := newTokenResponse(usr, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

type userResponse struct {
	User user.User `json:"user"`
}

func (api *authAPI) currentUser(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, userResponse{User: usr})
}
