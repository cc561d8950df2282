package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "waveline.io/courier/internal/pkg/errors"
	"waveline.io/courier/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "console")
}

func errorRequest(t *testing.T, handler gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/probe", handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	return w
}

func TestErrorHandler_AppErrorStatusAndCode(t *testing.T) {
	w := errorRequest(t, func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound(apperrors.CodeDeviceNotFound, "device token not registered"))
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeDeviceNotFound)
	assert.Contains(t, w.Body.String(), "device token not registered")
}

func TestErrorHandler_WrappedAppError(t *testing.T) {
	w := errorRequest(t, func(c *gin.Context) {
		inner := apperrors.BadRequest(apperrors.CodeInvalidDeviceType, "unsupported platform")
		_ = c.Error(apperrors.Wrap(inner, inner.Code, inner.Message, inner.HTTPStatus))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeInvalidDeviceType)
}

func TestErrorHandler_GenericErrorIs500(t *testing.T) {
	w := errorRequest(t, func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestErrorHandler_NoErrorPassesThrough(t *testing.T) {
	w := errorRequest(t, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	assert.Equal(t, http.StatusOK, w.Code)
}
