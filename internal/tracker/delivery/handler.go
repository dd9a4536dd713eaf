package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accountrepo "jobtrail-backend/internal/account/repository"
	"jobtrail-backend/internal/tracker/usecase"
)

type TrackerHandler struct {
	syncUsecase usecase.SyncUsecase
	accountRepo accountrepo.AccountRepository
}

func NewTrackerHandler(syncUsecase usecase.SyncUsecase, accountRepo accountrepo.AccountRepository) *TrackerHandler {
	return &TrackerHandler{
		syncUsecase: syncUsecase,
		accountRepo: accountRepo,
	}
}

// TriggerSync schedules a sync pass for the given mailbox and acknowledges
// immediately; it never waits for the pass to finish.
func (h *TrackerHandler) TriggerSync(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing email"})
		return
	}

	acc, err := h.accountRepo.FindByEmail(email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if acc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	scheduled := h.syncUsecase.Schedule(email)
	c.JSON(http.StatusAccepted, gin.H{
		"status":    "accepted",
		"scheduled": scheduled,
	})
}
