package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// storeErrorCases covers the errors document store calls can surface. Permission details stay in
// the logs; clients only learn that access was denied.
var storeErrorCases = []ErrorCase{
	{Err: domain.ErrInvalidReference, Status: http.StatusBadRequest, Message: "invalid document reference"},
	{Err: domain.ErrPermissionDenied, Status: http.StatusForbidden, Message: "permission denied"},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "document not found"},
	{Err: repository.ErrAlreadyExists, Status: http.StatusConflict, Message: "document already exists"},
	{Err: usecase.ErrProviderNotMounted, Status: http.StatusServiceUnavailable, Message: "document store unavailable"},
	{Err: usecase.ErrStoreNotScoped, Status: http.StatusServiceUnavailable, Message: "document store unavailable"},
	{Err: context.DeadlineExceeded, Status: http.StatusGatewayTimeout, Message: "document store timed out"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	logger.WithContext(c.Request.Context()).Warn("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondStoreError(c *gin.Context, err error, fallbackMessage string) {
	RespondWithMappedError(c, err, storeErrorCases, http.StatusInternalServerError, fallbackMessage)
}
