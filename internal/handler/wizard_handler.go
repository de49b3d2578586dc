package handler

import (
	"embed"
	"html/template"
	"net/http"

	"story-wizard/internal/generation"
	"story-wizard/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates возвращает шаблоны HTML-интерфейса мастера.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}

// WebsocketServer подключает websocket-клиента к уведомлениям сессии.
type WebsocketServer interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string) error
}

type WizardHandler struct {
	svc     service.WizardService
	cookies *SessionCookies
	ws      WebsocketServer
	logger  *zap.Logger
}

func NewWizardHandler(svc service.WizardService, cookies *SessionCookies, ws WebsocketServer, logger *zap.Logger) *WizardHandler {
	return &WizardHandler{
		svc:     svc,
		cookies: cookies,
		ws:      ws,
		logger:  logger.Named("WizardHandler"),
	}
}

// RegisterRoutes регистрирует HTML-интерфейс, JSON API и websocket.
// generationLimit применяется к действиям, запускающим генерацию.
// Шаблоны должны быть установлены через router.SetHTMLTemplate(Templates()).
func (h *WizardHandler) RegisterRoutes(router *gin.Engine, generationLimit gin.HandlerFunc) {
	if generationLimit == nil {
		generationLimit = func(c *gin.Context) { c.Next() }
	}

	page := router.Group("/")
	page.Use(h.SessionMiddleware())
	{
		page.GET("/", h.showPage)
		page.POST("/story", generationLimit, h.submitStoryForm)
		page.POST("/review/modify", h.modifyForm)
		page.POST("/review/finalize", h.finalizeForm)
		page.POST("/synthesis", generationLimit, h.submitToneForm)
		page.POST("/synthesis/back", h.backForm)
		page.POST("/cancel", h.cancelForm)
		page.POST("/reset", h.resetForm)
		page.GET("/ws", h.serveWebsocket)
	}

	api := router.Group("/api/v1/wizard")
	api.Use(h.SessionMiddleware())
	{
		api.GET("/state", h.getState)
		api.POST("/story", generationLimit, h.submitStory)
		api.POST("/modify", h.modify)
		api.POST("/finalize", h.finalize)
		api.POST("/synthesis", generationLimit, h.submitTone)
		api.POST("/back", h.back)
		api.POST("/cancel", h.cancel)
		api.DELETE("", h.reset)
	}
}

// storyRequest - поля формы ввода. Принимается как form-urlencoded, так и JSON.
type storyRequest struct {
	Age          string `form:"age" json:"age"`
	Gender       string `form:"gender" json:"gender"`
	SettingWhere string `form:"setting-where" json:"setting-where"`
	SettingWhen  string `form:"setting-when" json:"setting-when"`
	Religion     string `form:"religion" json:"religion"`
	Outcome      string `form:"outcome" json:"outcome"`
}

func (r storyRequest) toInput() map[string]string {
	return map[string]string{
		generation.FieldAge:          r.Age,
		generation.FieldGender:       r.Gender,
		generation.FieldSettingWhere: r.SettingWhere,
		generation.FieldSettingWhen:  r.SettingWhen,
		generation.FieldReligion:     r.Religion,
		generation.FieldOutcome:      r.Outcome,
	}
}

type toneRequest struct {
	Tone string `form:"tone" json:"tone"`
}

func (h *WizardHandler) serveWebsocket(c *gin.Context) {
	sessionID := c.GetString(ctxSessionID)
	// Upgrade сам пишет ответ с ошибкой.
	if err := h.ws.Serve(c.Writer, c.Request, sessionID); err != nil {
		h.logger.Debug("Websocket connection not established", zap.String("sessionID", sessionID), zap.Error(err))
	}
}
