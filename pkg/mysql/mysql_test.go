package mysql

import (
	"testing"

	"ChatRelay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQLite(t *testing.T) {
	db, err := Build(config.MySQLConfig{Driver: config.DriverSQLite, DSN: "file::memory:"})
	require.NoError(t, err)
	defer Close(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestBuildRejectsUnknownDriver(t *testing.T) {
	_, err := Build(config.MySQLConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)

	_, err = Build(config.MySQLConfig{Driver: config.DriverSQLite})
	assert.Error(t, err)
}
