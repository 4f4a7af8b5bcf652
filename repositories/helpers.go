package repositories

import (
	"database/sql"
	"fmt"
)

// checkAffectedRows возвращает notFoundError, если запрос не затронул ни одной строки.
func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}
