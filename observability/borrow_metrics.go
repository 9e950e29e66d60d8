package observability

import (
	"errors"

	"github.com/kevinaaaquil/library/backend/service"
)

func (p *Prom) ObserveBorrow(err error) {
	p.BorrowResults.WithLabelValues(classifyBorrow(err)).Inc()
}

func classifyBorrow(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, service.ErrPartialFailure):
		return "partial_failure"
	case errors.Is(err, service.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
