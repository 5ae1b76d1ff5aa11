/*

This file manages the persistent block cursor for the recording layer.
The cursor is stored in the database so recording resumes where it left
off across restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetLastRecordedHeight retrieves the height of the last recorded block.
func GetLastRecordedHeight() (uint64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT last_height FROM block_cursor WHERE id = 1;`

	var height uint64
	row := DB.QueryRow(query)
	err := row.Scan(&height)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Warn().Msg("No block cursor row found, starting from 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get last recorded height: %w", err)
	}

	return height, nil
}

// AdvanceBlockCursor moves the cursor forward to height. Moving backwards
// is rejected so a stale writer cannot rewind recording progress.
func AdvanceBlockCursor(height uint64) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	updateQuery := `
		UPDATE block_cursor
		SET last_height = $1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND last_height <= $1;`

	result, err := DB.Exec(updateQuery, height)
	if err != nil {
		return fmt.Errorf("failed to advance block cursor to %d: %w", height, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("block cursor is already past height %d", height)
	}

	log.Debug().Uint64("height", height).Msg("Advanced block cursor")
	return nil
}
