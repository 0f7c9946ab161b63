package recordstore

import (
	"context"

	"github.com/rs/zerolog"
)

// FetchAllOrEmpty is the fail-soft read used by listing pages: a backend
// failure is logged and presented as an empty table.
func FetchAllOrEmpty(ctx context.Context, s Store, table Table, logger zerolog.Logger) []Row {
	rows, err := s.FetchAll(ctx, table)
	if err != nil {
		logger.Warn().Err(err).Str("table", string(table)).Msg("record fetch failed, showing empty table")
		return []Row{}
	}
	return rows
}
