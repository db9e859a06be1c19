package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var defaultHeaders = map[string]string{
	"Vary":                             "Origin",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Headers":     "Authorization, Content-Type, X-Requested-With, X-Request-ID",
	"Access-Control-Allow-Methods":     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	"Access-Control-Max-Age":           "600",
}

// New builds a CORS middleware. An empty allow list means any origin,
// which is only intended for development setups.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		header := c.Writer.Header()

		origin := c.GetHeader("Origin")
		switch {
		case origin != "":
			_, allowed := originSet[strings.TrimRight(origin, "/")]
			if allowAll || allowed {
				header.Set("Access-Control-Allow-Origin", origin)
			}
		case allowAll:
			header.Set("Access-Control-Allow-Origin", "*")
		}

		for k, v := range defaultHeaders {
			header.Set(k, v)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
