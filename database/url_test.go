package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{
			name:     "no database name returns base",
			baseURL:  "postgres://u:p@localhost:5432/ledger",
			expected: "postgres://u:p@localhost:5432/ledger",
		},
		{
			name:     "appends name and sslmode",
			baseURL:  "postgres://u:p@localhost:5432/",
			dbName:   "mxi",
			expected: "postgres://u:p@localhost:5432/mxi?sslmode=disable",
		},
		{
			name:     "keeps query parameters",
			baseURL:  "postgres://u:p@localhost:5432?pool_max_conns=4",
			dbName:   "mxi",
			expected: "postgres://u:p@localhost:5432/mxi?pool_max_conns=4&sslmode=disable",
		},
		{
			name:     "respects explicit sslmode",
			baseURL:  "postgres://u:p@db:5432?sslmode=require",
			dbName:   "mxi",
			expected: "postgres://u:p@db:5432/mxi?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}
