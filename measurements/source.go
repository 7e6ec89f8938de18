package measurements

import (
	"context"
	"errors"

	"github.com/krillmap/dashboard/internal/period"
)

// ErrNoData reports that a source holds nothing for the requested period.
var ErrNoData = errors.New("no measurement data")

// Source loads the monthly snapshot for a period.
type Source interface {
	Load(ctx context.Context, p period.Period) (*Dataset, error)
}
