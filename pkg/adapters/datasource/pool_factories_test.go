package datasource

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSQLDB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	got, err := GetSQLDB(NewSQLDBWrapper(db, "mysql"))
	require.NoError(t, err)
	assert.Same(t, db, got)
}

func TestGetSQLDB_RejectsOtherConnectors(t *testing.T) {
	_, err := GetSQLDB(&fakeConnector{dbType: "postgres"})
	assert.ErrorContains(t, err, "not a database/sql pool wrapper")
}
