package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins. origin is a comma separated list, or
// "*" for any origin.
func CORS(origin string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.MaxAge = 12 * time.Hour

	if strings.TrimSpace(origin) == "" || origin == "*" {
		config.AllowAllOrigins = true
		return cors.New(config)
	}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			config.AllowOrigins = append(config.AllowOrigins, o)
		}
	}
	config.AllowCredentials = true
	return cors.New(config)
}
