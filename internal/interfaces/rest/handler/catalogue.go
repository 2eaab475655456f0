package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/trilha/internal/catalogue"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
)

// CatalogueHandler .
type CatalogueHandler struct {
	catalogueUseCase catalogue.CatalogueUseCase
	validator        validate.Validator
}

// NewCatalogueHandler .
func NewCatalogueHandler(
	CatalogueUseCase catalogue.CatalogueUseCase,
	Validator validate.Validator,
) *CatalogueHandler {
	return &CatalogueHandler{CatalogueUseCase, Validator}
}

type lockRequest struct {
	Locked *bool `json:"locked" validate:"required"`
}

// HandleGetCatalogue GET /catalogue?locked=&column=
func (ch *CatalogueHandler) HandleGetCatalogue(c echo.Context) error {
	var (
		filter  catalogue.OverviewFilter
		invalid []*validate.FieldError
	)
	if v := c.QueryParam("locked"); v != "" {
		locked, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, validate.NewFieldError("locked", "locked must be true or false"))
		} else {
			filter.Locked = &locked
		}
	}
	if v := c.QueryParam("column"); v != "" {
		column, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, validate.NewFieldError("column", "column must be an integer"))
		} else {
			filter.Column = &column
		}
	}
	if len(invalid) > 0 {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}

	overview, err := ch.catalogueUseCase.Overview(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overview)
}

// HandleGetProgress GET /progress
func (ch *CatalogueHandler) HandleGetProgress(c echo.Context) error {
	overview, err := ch.catalogueUseCase.Overview(c.Request().Context(), catalogue.OverviewFilter{})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overview.Progress)
}

// HandleAddModule POST /modules
func (ch *CatalogueHandler) HandleAddModule(c echo.Context) error {
	input := new(catalogue.ModuleInput)
	if err := c.Bind(input); err != nil {
		return bindError(c, err)
	}
	module, err := ch.catalogueUseCase.AddModule(c.Request().Context(), input)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, module)
}

// HandleEditModule PUT /modules/:module_id
func (ch *CatalogueHandler) HandleEditModule(c echo.Context) error {
	moduleID, ok, err := ch.pathID(c, "module_id")
	if !ok {
		return err
	}
	input := new(catalogue.ModuleInput)
	if err := c.Bind(input); err != nil {
		return bindError(c, err)
	}
	module, err := ch.catalogueUseCase.EditModule(c.Request().Context(), moduleID, input)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusOK, module)
}

// HandleDeleteModule DELETE /modules/:module_id
func (ch *CatalogueHandler) HandleDeleteModule(c echo.Context) error {
	moduleID, ok, err := ch.pathID(c, "module_id")
	if !ok {
		return err
	}
	if err := ch.catalogueUseCase.DeleteModule(c.Request().Context(), moduleID); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSetModuleLock PUT /modules/:module_id/lock
func (ch *CatalogueHandler) HandleSetModuleLock(c echo.Context) error {
	moduleID, ok, err := ch.pathID(c, "module_id")
	if !ok {
		return err
	}
	locked, ok, err := ch.bindLock(c)
	if !ok {
		return err
	}
	if err := ch.catalogueUseCase.SetModuleLocked(c.Request().Context(), moduleID, locked); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleAddLesson POST /modules/:module_id/lessons
func (ch *CatalogueHandler) HandleAddLesson(c echo.Context) error {
	moduleID, ok, err := ch.pathID(c, "module_id")
	if !ok {
		return err
	}
	input := new(catalogue.LessonInput)
	if err := c.Bind(input); err != nil {
		return bindError(c, err)
	}
	lesson, err := ch.catalogueUseCase.AddLesson(c.Request().Context(), moduleID, input)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(http.StatusCreated, lesson)
}

// HandleDeleteLesson DELETE /modules/:module_id/lessons/:lesson_id
func (ch *CatalogueHandler) HandleDeleteLesson(c echo.Context) error {
	moduleID, lessonID, ok, err := ch.lessonPath(c)
	if !ok {
		return err
	}
	if err := ch.catalogueUseCase.DeleteLesson(c.Request().Context(), moduleID, lessonID); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleMarkWatched PUT /modules/:module_id/lessons/:lesson_id/watched
func (ch *CatalogueHandler) HandleMarkWatched(c echo.Context) error {
	moduleID, lessonID, ok, err := ch.lessonPath(c)
	if !ok {
		return err
	}
	if err := ch.catalogueUseCase.MarkLessonWatched(c.Request().Context(), moduleID, lessonID); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSetLessonLock PUT /modules/:module_id/lessons/:lesson_id/lock
func (ch *CatalogueHandler) HandleSetLessonLock(c echo.Context) error {
	moduleID, lessonID, ok, err := ch.lessonPath(c)
	if !ok {
		return err
	}
	locked, ok, err := ch.bindLock(c)
	if !ok {
		return err
	}
	if err := ch.catalogueUseCase.SetLessonLocked(c.Request().Context(), moduleID, lessonID, locked); err != nil {
		return renderError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// pathID parse a positive integer path parameter, when ok is false the response
// was already written and err must be returned as is
func (ch *CatalogueHandler) pathID(c echo.Context, name string) (id int64, ok bool, err error) {
	id, perr := strconv.ParseInt(c.Param(name), 10, 64)
	if perr != nil {
		return 0, false, c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params",
			[]*validate.FieldError{validate.NewFieldError(name, name+" must be an integer")}))
	}
	if invalid := ch.validator.Var(name, id, "gt=0"); invalid != nil {
		return 0, false, c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}
	return id, true, nil
}

func (ch *CatalogueHandler) lessonPath(c echo.Context) (moduleID, lessonID int64, ok bool, err error) {
	if moduleID, ok, err = ch.pathID(c, "module_id"); !ok {
		return
	}
	lessonID, ok, err = ch.pathID(c, "lesson_id")
	return
}

func (ch *CatalogueHandler) bindLock(c echo.Context) (locked bool, ok bool, err error) {
	req := new(lockRequest)
	if err := c.Bind(req); err != nil {
		return false, false, bindError(c, err)
	}
	if invalid := ch.validator.Struct(req); invalid != nil {
		return false, false, c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}
	return *req.Locked, true, nil
}

func bindError(c echo.Context, err error) error {
	detail := err.Error()
	if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
		detail = he.Internal.Error()
	}
	return c.JSON(http.StatusUnprocessableEntity, NewRESTStandardError(http.StatusUnprocessableEntity, detail))
}

// renderError answer the errors callers can act on, anything else is left
// to the error handling middleware
func renderError(c echo.Context, err error) error {
	var ve *catalogue.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", ve.Fields))
	case errors.Is(err, catalogue.ErrModuleNotFound), errors.Is(err, catalogue.ErrLessonNotFound):
		return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
	}
	return err
}
