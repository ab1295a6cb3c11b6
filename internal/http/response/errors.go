package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/guildops-backend/internal/domain/aggregates"
	"github.com/yungbote/guildops-backend/internal/platform/apierr"
)

// StatusForCode maps aggregate error codes to HTTP statuses.
func StatusForCode(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeUnknownReference:
		return http.StatusUnprocessableEntity
	case domainagg.CodePermissionDenied:
		return http.StatusForbidden
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err in the error envelope, picking the status from its chain.
// Internal failures are not echoed to the client.
func Error(c *gin.Context, err error) {
	if ae, ok := apierr.As(err); ok {
		RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) && aggErr != nil {
		status := StatusForCode(aggErr.Code)
		if status == http.StatusInternalServerError {
			_ = c.Error(err)
			RespondError(c, status, string(domainagg.CodeInternal), errors.New("internal error"))
			return
		}
		RespondError(c, status, string(aggErr.Code), errors.New(aggErr.Message))
		return
	}
	_ = c.Error(err)
	RespondError(c, http.StatusInternalServerError, string(domainagg.CodeInternal), errors.New("internal error"))
}
