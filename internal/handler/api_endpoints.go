package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"story-wizard/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respond отдает представление сессии. С ?wait=true ответ дожидается завершения генерации.
func (h *WizardHandler) respond(c *gin.Context, sess *models.Session) {
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait && sess.State.Pending != nil {
		waited, err := h.svc.Wait(c.Request.Context(), sess.ID)
		if err != nil {
			// Клиент ушел или истек контекст запроса: отдаем то, что есть.
			h.logger.Debug("Wait for generation interrupted", zap.String("sessionID", sess.ID), zap.Error(err))
		} else {
			sess = waited
		}
	}
	c.JSON(http.StatusOK, models.NewSessionView(sess))
}

func (h *WizardHandler) apiAction(c *gin.Context, action func(ctx context.Context, sessionID string) (*models.Session, error)) {
	sess, err := action(c.Request.Context(), c.GetString(ctxSessionID))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.respond(c, sess)
}

func (h *WizardHandler) getState(c *gin.Context) {
	h.apiAction(c, h.svc.GetSession)
}

func (h *WizardHandler) submitStory(c *gin.Context) {
	var req storyRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Failed to bind story request", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrBadRequest, err))
		return
	}
	h.apiAction(c, func(ctx context.Context, id string) (*models.Session, error) {
		return h.svc.SubmitStory(ctx, id, req.toInput())
	})
}

func (h *WizardHandler) modify(c *gin.Context) {
	h.apiAction(c, h.svc.Modify)
}

func (h *WizardHandler) finalize(c *gin.Context) {
	h.apiAction(c, h.svc.Finalize)
}

func (h *WizardHandler) submitTone(c *gin.Context) {
	var req toneRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("Failed to bind tone request", zap.Error(err))
		handleServiceError(c, fmt.Errorf("%w: %v", models.ErrBadRequest, err))
		return
	}
	h.apiAction(c, func(ctx context.Context, id string) (*models.Session, error) {
		return h.svc.SubmitTone(ctx, id, req.Tone)
	})
}

func (h *WizardHandler) back(c *gin.Context) {
	h.apiAction(c, h.svc.Back)
}

func (h *WizardHandler) cancel(c *gin.Context) {
	h.apiAction(c, h.svc.Cancel)
}

func (h *WizardHandler) reset(c *gin.Context) {
	h.apiAction(c, h.svc.Reset)
}
