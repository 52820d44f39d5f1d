package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNumbersAreUnique(t *testing.T) {
	m := NewMemory()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := m.Next(context.Background(), "order-alice")
			assert.NoError(t, err)

			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.True(t, seen[1])
	assert.True(t, seen[50])

	n, err := m.Next(context.Background(), "report-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "counters are per name")
}

func TestPostgresNext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO counters").
		WithArgs("order-alice").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(4))

	n, err := NewPostgres(sqlx.NewDb(db, "postgres")).Next(context.Background(), "order-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNextError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO counters").WillReturnError(assert.AnError)

	_, err = NewPostgres(sqlx.NewDb(db, "postgres")).Next(context.Background(), "order-alice")
	assert.ErrorIs(t, err, assert.AnError)
}
