package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sis-enrollment/internal/middleware"
	"github.com/noah-isme/sis-enrollment/internal/models"
	appErrors "github.com/noah-isme/sis-enrollment/pkg/errors"
	"github.com/noah-isme/sis-enrollment/pkg/response"
)

// currentUser returns the caller's claims, writing a 401 when the route was not protected.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
