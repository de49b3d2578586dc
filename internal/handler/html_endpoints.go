package handler

import (
	"context"
	"fmt"
	"net/http"

	"story-wizard/internal/generation"
	"story-wizard/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// refreshSeconds - период автообновления страницы, пока идет генерация.
const refreshSeconds = 2

// pageData - данные шаблона wizard.html.
type pageData struct {
	View      models.SessionView
	Tones     []string
	Outcomes  []string
	Notice    string
	RefreshIn int
}

func (h *WizardHandler) renderPage(c *gin.Context, status int, view models.SessionView, notice string) {
	tones := make([]string, 0, len(generation.Tones))
	for _, t := range generation.Tones {
		tones = append(tones, string(t))
	}
	data := pageData{
		View:     view,
		Tones:    tones,
		Outcomes: []string{string(generation.OutcomeGood), string(generation.OutcomeBad), string(generation.OutcomeNeutral)},
		Notice:   notice,
	}
	if view.Pending != "" {
		data.RefreshIn = refreshSeconds
	}
	c.HTML(status, "wizard.html", data)
}

func (h *WizardHandler) showPage(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), c.GetString(ctxSessionID))
	if err != nil {
		status, errResp := errorStatus(err)
		c.String(status, errResp.Message)
		return
	}
	h.renderPage(c, http.StatusOK, models.NewSessionView(sess), "")
}

// formAction выполняет действие и перенаправляет на страницу (POST-redirect-GET).
// Ошибки пользователя показываются на текущей странице с соответствующим статусом.
func (h *WizardHandler) formAction(c *gin.Context, action func(ctx context.Context, sessionID string) (*models.Session, error)) {
	sessionID := c.GetString(ctxSessionID)
	if _, err := action(c.Request.Context(), sessionID); err != nil {
		status, errResp := errorStatus(err)
		sess, getErr := h.svc.GetSession(c.Request.Context(), sessionID)
		if getErr != nil {
			c.String(status, errResp.Message)
			return
		}
		h.logger.Debug("Form action rejected", zap.String("sessionID", sessionID), zap.Int("status", status), zap.Error(err))
		h.renderPage(c, status, models.NewSessionView(sess), errResp.Message)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WizardHandler) submitStoryForm(c *gin.Context) {
	var req storyRequest
	if err := c.ShouldBind(&req); err != nil {
		h.formAction(c, func(context.Context, string) (*models.Session, error) {
			return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		})
		return
	}
	h.formAction(c, func(ctx context.Context, id string) (*models.Session, error) {
		return h.svc.SubmitStory(ctx, id, req.toInput())
	})
}

func (h *WizardHandler) modifyForm(c *gin.Context) {
	h.formAction(c, h.svc.Modify)
}

func (h *WizardHandler) finalizeForm(c *gin.Context) {
	h.formAction(c, h.svc.Finalize)
}

func (h *WizardHandler) submitToneForm(c *gin.Context) {
	var req toneRequest
	if err := c.ShouldBind(&req); err != nil {
		h.formAction(c, func(context.Context, string) (*models.Session, error) {
			return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		})
		return
	}
	h.formAction(c, func(ctx context.Context, id string) (*models.Session, error) {
		return h.svc.SubmitTone(ctx, id, req.Tone)
	})
}

func (h *WizardHandler) backForm(c *gin.Context) {
	h.formAction(c, h.svc.Back)
}

func (h *WizardHandler) cancelForm(c *gin.Context) {
	h.formAction(c, h.svc.Cancel)
}

func (h *WizardHandler) resetForm(c *gin.Context) {
	h.formAction(c, h.svc.Reset)
}
