package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_LoadEmbedded(t *testing.T) {
	m := NewMigrator(nil)

	migrations, err := m.Load()
	require.NoError(t, err)
	require.Len(t, migrations, 5)

	for i, mig := range migrations {
		assert.Equal(t, i+1, mig.Version)
		assert.NotEmpty(t, mig.SQL)
	}
	assert.Equal(t, "001_users.sql", migrations[0].Name)
	assert.Contains(t, migrations[2].SQL, "UNIQUE (doctor_id, appointment_date, start_time)")
	assert.Contains(t, migrations[1].SQL, "UNIQUE (doctor_id, date)")
}
