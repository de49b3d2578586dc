package handler

import (
	"errors"
	"net/http"

	"story-wizard/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorStatus переводит ошибку сервиса в HTTP-статус и тело ответа.
func errorStatus(err error) (int, models.ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrBadRequest):
		return http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "The request could not be read"}
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound, models.ErrorResponse{Code: models.ErrCodeSessionNotFound, Message: "Session not found"}
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, models.ErrorResponse{Code: models.ErrCodeInvalidTransition, Message: "This action is not available on the current screen"}
	case errors.Is(err, models.ErrGenerationInProgress):
		return http.StatusConflict, models.ErrorResponse{Code: models.ErrCodeGenerationInProgress, Message: "Please wait for the current generation to finish"}
	case errors.Is(err, models.ErrSessionBusy):
		return http.StatusServiceUnavailable, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "The service is busy, please try again shortly"}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		return http.StatusInternalServerError, models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}
}

func handleServiceError(c *gin.Context, err error) {
	status, errResp := errorStatus(err)
	c.AbortWithStatusJSON(status, errResp)
}
