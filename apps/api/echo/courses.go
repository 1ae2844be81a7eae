package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/user"
)

const (
	msgCourseCreated = "Course created successfully"
	msgCourseUpdated = "Course updated successfully"
	msgCourseDeleted = "Course and related enrollments deleted successfully"
)

type courseAPI struct {
	service  course.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseAPI{service: deps.CourseSvc, usrSvc: deps.UserSvc, validate: deps.Validate}
	instructor := roleMiddleware(user.RoleInstructor, deps.UserSvc)

	g.GET("/categories", api.categories)

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.POST("", api.create, jwt, instructor)
	cg.GET("/instructor", api.queryByInstructor, jwt, instructor)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, jwt, instructor)
	cg.DELETE("/:id", api.destroy, jwt, instructor)
}

type (
	courseResponse struct {
		Message string        `json:"message,omitempty"`
		Course  course.Course `json:"course"`
	}

	courseListResponse struct {
		Courses []course.Course `json:"courses"`
	}

	instructorCourseListResponse struct {
		Courses []course.InstructorCourse `json:"courses"`
	}

	categoryListResponse struct {
		Categories []course.Category `json:"categories"`
	}

	// courseQueryParams holds the public listing filters; the instructor filter is not one of them.
	courseQueryParams struct {
		Category string `query:"category"`
	}

	messageResponse struct {
		Message string `json:"message"`
	}
)

// Handlers

func (api *courseAPI) create(ctx echo.Context) error {
	data := new(course.NewCourse)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	c, err := api.service.Create(ctx.Request().Context(), usr, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, courseResponse{Message: msgCourseCreated, Course: c})
}

func (api *courseAPI) queryByInstructor(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	courses, err := api.service.QueryByInstructor(ctx.Request().Context(), usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, instructorCourseListResponse{Courses: courses})
}

func (api *courseAPI) query(ctx echo.Context) error {
	params := new(courseQueryParams)
	if err := ctx.Bind(params); err != nil {
		return err
	}
	courses, err := api.service.Query(ctx.Request().Context(), course.QueryFilter{Category: params.Category})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courseListResponse{Courses: courses})
}

func (api *courseAPI) retrieve(ctx echo.Context) error {
	c, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courseResponse{Course: c})
}

func (api *courseAPI) update(ctx echo.Context) error {
	data := new(course.UpdateCourse)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	c, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), usr, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courseResponse{Message: msgCourseUpdated, Course: c})
}

func (api *courseAPI) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if err = api.service.Delete(ctx.Request().Context(), ctx.Param("id"), usr.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{Message: msgCourseDeleted})
}

func (api *courseAPI) categories(ctx echo.Context) error {
	cats, err := api.service.Categories(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, categoryListResponse{Categories: cats})
}
