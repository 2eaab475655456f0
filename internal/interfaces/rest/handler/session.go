package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/trilha/internal/infrastructure/auth"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
)

// SessionHandler administrator sign in and sign out
type SessionHandler struct {
	jwtUtil       *auth.JWTUtil
	authenticator *auth.Authenticator
	validator     validate.Validator
}

// NewSessionHandler .
func NewSessionHandler(
	JWTUtil *auth.JWTUtil,
	Authenticator *auth.Authenticator,
	Validator validate.Validator,
) *SessionHandler {
	return &SessionHandler{JWTUtil, Authenticator, Validator}
}

type signInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleSignIn POST /session
func (sh *SessionHandler) HandleSignIn(c echo.Context) error {
	req := new(signInRequest)
	if err := c.Bind(req); err != nil {
		return bindError(c, err)
	}
	if invalid := sh.validator.Struct(req); invalid != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}

	ctx := c.Request().Context()
	tokenStr, err := sh.authenticator.SignIn(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		return c.JSON(http.StatusUnauthorized, NewRESTStandardError(http.StatusUnauthorized, err.Error()))
	case errors.Is(err, auth.ErrTooManyAttempts):
		return c.JSON(http.StatusForbidden, NewRESTStandardError(http.StatusForbidden, err.Error()))
	case err != nil:
		return err
	}
	sh.jwtUtil.SetClientToken(c, tokenStr)

	session, err := sh.authenticator.Session(ctx, tokenStr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// HandleGetSession GET /session
func (sh *SessionHandler) HandleGetSession(c echo.Context) error {
	tokenStr, _ := sh.jwtUtil.ExtractToken(c)
	session, err := sh.authenticator.Session(c.Request().Context(), tokenStr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

// HandleSignOut DELETE /session
func (sh *SessionHandler) HandleSignOut(c echo.Context) error {
	if tokenStr, err := sh.jwtUtil.ExtractToken(c); err == nil {
		if err := sh.authenticator.SignOut(c.Request().Context(), tokenStr); err != nil {
			return err
		}
	}
	sh.jwtUtil.ClearClientToken(c)
	return c.NoContent(http.StatusNoContent)
}
