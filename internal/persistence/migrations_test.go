package persistence

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMigrationsSkipsApplied(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_b.sql"), []byte("CREATE TABLE b (id INT)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("CREATE TABLE a (id INT)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o600))

	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("0001_a.sql").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("0002_b.sql").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0002_b.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, RunMigrations(context.Background(), mock, dir, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsMissingDir(t *testing.T) {
	mock := newMock(t)
	err := RunMigrations(context.Background(), mock, filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	assert.Error(t, err)
}
