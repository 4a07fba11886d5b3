package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/gatewayerr"
)

// RespondError writes err as the §7 taxonomy JSON body: {error, message,
// ...fields}. Errors that aren't a *gatewayerr.Error are treated as an
// unclassified internal error rather than leaking their raw message.
func RespondError(c *gin.Context, err error) {
	gwErr, ok := gatewayerr.As(err)
	if !ok {
		c.AbortWithStatusJSON(500, gin.H{
			"error":   string(gatewayerr.InternalError),
			"message": "internal error",
		})
		return
	}

	body := gin.H{
		"error":   string(gwErr.Kind),
		"message": gwErr.Message,
	}
	for k, v := range gwErr.Fields {
		body[k] = v
	}
	c.AbortWithStatusJSON(gwErr.HTTPStatus(), body)
}
