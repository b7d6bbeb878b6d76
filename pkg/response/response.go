package response

import (
	"github.com/gin-gonic/gin"
)

// Error writes the standard error envelope.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// Message writes a bare status message.
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}
