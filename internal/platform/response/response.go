package response

import (
	"net/http"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/gin-gonic/gin"
)

// Success writes a 200 response with the given body.
func Success(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

// Message writes a 200 response of the form {"success": true, "message": msg} merged with extra fields.
func Message(c *gin.Context, msg string, extra gin.H) {
	body := gin.H{"success": true, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// BadRequest writes a 400 error response.
func BadRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// Unauthorized writes a 401 error response.
func Unauthorized(c *gin.Context, msg string) {
	fail(c, http.StatusUnauthorized, msg)
}

// Error maps err to an HTTP status and writes it. Errors that are not
// *apperror.AppError surface as 500 with the underlying message.
func Error(c *gin.Context, err error) {
	fail(c, StatusFor(err), err.Error())
}

// StatusFor returns the HTTP status code for err.
func StatusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict, apperror.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
