package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConnectionString(t *testing.T) {
	conStr, err := GenerateConnectionString("db", "user", "pass", "integration", "disable", 5432, 10, 5*time.Second)
	require.NoError(t, err)

	assert.Contains(t, conStr, "host=db")
	assert.Contains(t, conStr, "port=5432")
	assert.Contains(t, conStr, "dbname=integration")
	assert.Contains(t, conStr, "pool_max_conns=10")
	assert.Contains(t, conStr, "connect_timeout=5")
}

func TestGenerateConnectionString_Validation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (string, error)
		wantErr error
	}{
		{
			"empty host",
			func() (string, error) {
				return GenerateConnectionString("", "u", "p", "db", "disable", 5432, 10, 0)
			},
			ErrStorageEmptyHostName,
		},
		{
			"bad port",
			func() (string, error) {
				return GenerateConnectionString("db", "u", "p", "db", "disable", 70000, 10, 0)
			},
			ErrStorageInvalidPortNumber,
		},
		{
			"empty user",
			func() (string, error) {
				return GenerateConnectionString("db", "", "p", "db", "disable", 5432, 10, 0)
			},
			ErrStorageEmptyUsername,
		},
		{
			"empty password",
			func() (string, error) {
				return GenerateConnectionString("db", "u", "", "db", "disable", 5432, 10, 0)
			},
			ErrStorageEmptyPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
