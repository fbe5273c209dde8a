package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/estudio-sys/estudio-adm-api/pkg/errors"
)

func parseDNIParam(c *gin.Context) (int64, error) {
	raw := c.Param("dni")
	dni, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || dni <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid dni")
	}
	return dni, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func queryInt64Ptr(c *gin.Context, key string) *int64 {
	if raw := c.Query(key); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return &value
		}
	}
	return nil
}

func queryStringPtr(c *gin.Context, key string) *string {
	if raw := c.Query(key); raw != "" {
		return &raw
	}
	return nil
}
