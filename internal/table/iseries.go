package table

import (
	"github.com/paveg/rollup/internal/series"
)

// ISeries provides a type-erased interface for Series of any type
type ISeries = series.ISeries
