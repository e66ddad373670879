package middleware

import "github.com/gin-gonic/gin"

// ErrorBody is the JSON envelope for failed requests.
func ErrorBody(message string) gin.H {
	return gin.H{
		"success":      false,
		"errorMessage": message,
	}
}
