package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
