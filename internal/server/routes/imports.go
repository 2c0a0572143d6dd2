package routes

import (
	"net/http"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/1145-am/orggraph/internal/server/middleware"
	"github.com/1145-am/orggraph/internal/storage"
	"github.com/1145-am/orggraph/pkg/logger"
)

// GetImportsHandler lists recent RDF batch imports, newest first.
func GetImportsHandler(c echo.Context) error {
	type importsParams struct {
		Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
	}

	type importsResponse struct {
		Message string                  `json:"message,omitempty"`
		Imports []storage.DataImportRow `json:"imports"`
	}

	params := new(importsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, importsResponse{Message: "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, importsResponse{Message: "Invalid request params"})
	}
	if params.Limit == 0 {
		params.Limit = 50
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	rows, err := app.Imports.ImportHistory(ctx, params.Limit)
	if err != nil {
		logger.Error("Failed to read import history", "err", err)
		return c.JSON(http.StatusInternalServerError, importsResponse{Message: "Internal server error"})
	}
	if rows == nil {
		rows = []storage.DataImportRow{}
	}

	return c.JSON(http.StatusOK, importsResponse{Imports: rows})
}
