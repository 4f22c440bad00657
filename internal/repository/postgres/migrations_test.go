package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	found, err := migrations.FindMigrations()
	require.NoError(t, err)
	require.Len(t, found, 1)

	up := strings.Join(found[0].Up, "\n")
	assert.Contains(t, up, "UNIQUE (booking_id, recipient_email, reminder_date, type)")
	assert.Contains(t, up, "sent_at TIMESTAMPTZ,")
	assert.Equal(t, []string{"DROP TABLE IF EXISTS reminder_logs"}, found[0].Down)
	assert.Equal(t, "reminder_schema_migrations", migrationSet().TableName)
}
