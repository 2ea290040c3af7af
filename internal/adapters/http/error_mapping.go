package httpadapter

import (
	"net/http"

	"github.com/antonkh/ragline/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrStoreUnconfigured):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
