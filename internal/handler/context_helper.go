package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-behavior-api/internal/middleware"
	"github.com/noah-isme/sma-behavior-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}
