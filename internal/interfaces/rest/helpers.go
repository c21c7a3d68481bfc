package rest

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/pkg/auth"
	"github.com/docuflow/backend/pkg/constants"
	"github.com/docuflow/backend/pkg/errors"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	userInterface, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil
	}

	user := userInterface.(auth.UserSession)
	return &user
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		log.Printf("❌ ERROR [%d] %s %s: %s", code, c.Request.Method, c.Request.URL.Path, message)
	}

	c.JSON(code, gin.H{
		constants.ResponseError: message,
		constants.FieldMessage:  message,
		"code":                  errorCode,
		"data":                  nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}
