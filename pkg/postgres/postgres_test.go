package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipat/crew-scheduler/pkg/core/model"
	"github.com/sipat/crew-scheduler/pkg/db"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_add_index.sql": {Data: []byte("CREATE INDEX ...")},
		"migrations/001_init.sql":      {Data: []byte("CREATE TABLE ...")},
		"migrations/README.md":         {Data: []byte("notes")},
		"migrations/003_seed.sql":      {Data: []byte("INSERT ...")},
	}

	pending, err := pendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_add_index.sql", "003_seed.sql"}, pending)
}

func TestPendingMigrations_EmbeddedInitIsFirst(t *testing.T) {
	pending, err := pendingMigrations(migrationsFS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "001_init.sql", pending[0])
}

func TestDecodePayload(t *testing.T) {
	raw := []byte(`{"hora_fin":"08:30","horas_acumuladas":13.5,"salidas":1,"inicio":["06:00","09:00"],"valores":[1.5,2]}`)

	payload, err := decodePayload(raw)
	require.NoError(t, err)

	assert.Equal(t, "08:30", payload["hora_fin"])
	assert.Equal(t, []string{"06:00", "09:00"}, payload["inicio"])
	assert.Equal(t, []float64{1.5, 2}, payload["valores"])

	salidas, ok := payload.Float("salidas")
	require.True(t, ok)
	assert.Equal(t, 1.0, salidas)
}

func TestDecodePayload_RejectsNestedObjects(t *testing.T) {
	_, err := decodePayload([]byte(`{"nested":{"a":1}}`))
	assert.ErrorIs(t, err, model.ErrInvalidPayload)
}

func TestDecodePayload_Empty(t *testing.T) {
	payload, err := decodePayload(nil)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestValidationFilterClause(t *testing.T) {
	where, args := validationFilterClause(db.ValidationFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = validationFilterClause(db.ValidationFilter{
		Status:     model.ValidationPending,
		ScheduleID: "sched-1",
	})
	assert.Equal(t, " WHERE status = $1 AND schedule_id = $2", where)
	assert.Equal(t, []any{"PENDING", "sched-1"}, args)
}
