package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

// UserHandler serves the self-service account routes.
type UserHandler struct {
	userService ports.UserService
}

func NewUserHandler(userService ports.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Me returns the logged-in user.
//
// @Summary      Get my account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	me, err := h.userService.Me(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: statusSuccess, Data: userData{User: me}})
}

// UpdateMe changes name or email. Password changes have their own route.
//
// @Summary      Update my account
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateMeRequest  true  "Fields to change"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/v1/users/updateMe [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Password != nil || req.PasswordConfirm != nil {
		return domain.NewValidationError("This route is not for password updates. Please use /updateMyPassword.")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	updated, err := h.userService.UpdateMe(c.Request().Context(), ports.UpdateMeInput{
		UserID: user.ID,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: statusSuccess, Data: userData{User: updated}})
}

// DeleteMe deactivates the logged-in account.
//
// @Summary      Delete my account
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/users/deleteMe [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.userService.DeleteMe(c.Request().Context(), user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Reactivate restores a deactivated account. Admin only.
//
// @Summary      Reactivate an account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/users/{id}/reactivate [patch]
func (h *UserHandler) Reactivate(c echo.Context) error {
	user, err := h.userService.Reactivate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Status: statusSuccess, Data: userData{User: user}})
}
