package delivery

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobtrail-backend/internal/account/usecase"
)

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
}

func NewAuthHandler(authUsecase usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
	}
}

// Auth redirects to the Google OAuth consent screen.
func (h *AuthHandler) Auth(c *gin.Context) {
	c.Redirect(http.StatusFound, h.authUsecase.AuthURL())
}

// Callback handles the Google redirect after consent.
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "Missing authorization code")
		return
	}

	email, err := h.authUsecase.HandleCallback(c.Request.Context(), code)
	if err != nil {
		c.String(http.StatusInternalServerError, "Authentication failed.")
		return
	}

	c.String(http.StatusOK, fmt.Sprintf("Gmail access granted for %s", email))
}
