package apperr

import (
	"log"

	"github.com/gin-gonic/gin"
)

// Respond writes the standard error envelope. Raw error text only travels in
// the details field.
func Respond(c *gin.Context, err error, fallbackCode string) {
	cl := Classify(err, fallbackCode)
	if cl.Status >= 500 {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(cl.Status, gin.H{
		"success": false,
		"error":   cl.Code,
		"message": cl.Message,
		"details": err.Error(),
	})
}
