package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
)

const (
	msgEnrolled        = "Successfully enrolled in course"
	msgProgressUpdated = "Progress updated successfully"
)

type enrollmentAPI struct {
	service  enrollment.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollmentAPI{service: deps.EnrollmentSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	eg := g.Group("/enrollments", jwt, roleMiddleware(user.RoleStudent, deps.UserSvc))
	eg.POST("", api.enroll)
	eg.GET("", api.query)
	eg.PUT("/:id/progress", api.updateProgress)
}

type (
	enrollmentResponse struct {
		Message    string            `json:"message"`
		Enrollment enrollment.Detail `json:"enrollment"`
	}

	enrollmentListResponse struct {
		Enrollments []enrollment.Detail `json:"enrollments"`
	}

	progressResponse struct {
		Message string `json:"message"`
		enrollment.Summary
	}
)

// Handlers

func (api *enrollmentAPI) enroll(ctx echo.Context) error {
	data := new(enrollment.NewEnrollment)
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
	detail, err := api.service.Enroll(ctx.Request().Context(), usr, data.CourseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enrollmentResponse{Message: msgEnrolled, Enrollment: detail})
}

func (api *enrollmentAPI) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	details, err := api.service.QueryByStudent(ctx.Request().Context(), usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enrollmentListResponse{Enrollments: details})
}

func (api *enrollmentAPI) updateProgress(ctx echo.Context) error {
	data := new(enrollment.ProgressUpdate)
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
	summary, err := api.service.MarkVideoCompleted(ctx.Request().Context(), ctx.Param("id"), usr.ID, *data.VideoIndex)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, progressResponse{Message: msgProgressUpdated, Summary: summary})
}
