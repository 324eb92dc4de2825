package middleware

import (
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"shopmirror/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if ne, ok := recovered.(*net.OpError); ok {
			if se, ok := ne.Err.(*os.SyscallError); ok {
				if strings.Contains(strings.ToLower(se.Error()), "broken pipe") ||
					strings.Contains(strings.ToLower(se.Error()), "connection reset by peer") {
					c.Abort()
					return
				}
			}
		}

		fields := []zap.Field{zap.Any("panic", recovered), zap.Stack("stack")}
		if gin.IsDebugging() {
			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			fields = append(fields, zap.ByteString("request", httpRequest))
		}
		logger.Error("[Recovery] panic recovered", fields...)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
