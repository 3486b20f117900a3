// Package handler holds request helpers shared by the per-domain handlers.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/middleware"
	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/validator"
)

const msgValidation = "Validation error"

// BindJSON decodes and validates the body into obj. On failure it writes
// the error response and returns false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// BindForm is BindJSON for multipart and url-encoded forms.
func BindForm(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBind(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

// BindQuery binds query parameters into obj.
func BindQuery(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func respondBindError(c *gin.Context, err error) {
	if fields, ok := validator.FieldErrors(err); ok {
		httputil.RespondWithError(c, apperrors.Validation(msgValidation, fields))
		return
	}
	httputil.RespondWithError(c, apperrors.BadRequest("invalid request body: "+err.Error(), nil))
}

// ParamID parses a positive integer path parameter.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.Validation("invalid "+name, map[string]string{name: "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// Principal returns the authenticated caller or writes a 401.
func Principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("", nil))
		return model.Principal{}, false
	}
	return p, true
}
