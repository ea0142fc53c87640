package postgres

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_newPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]any
		wantErr  bool
		wantMax  int32
		wantHook bool
	}{
		{name: "no url", values: map[string]any{}, wantErr: true},
		{name: "bad url", values: map[string]any{"db.url": "postgres://u:p@olia:badport/db"}, wantErr: true},
		{name: "OK", values: map[string]any{"db.url": "postgres://u:p@localhost:5432/db?pool_max_conns=7"}, wantMax: 7},
		{name: "max conns", values: map[string]any{"db.url": "postgres://u:p@localhost:5432/db", "db.maxConns": 12}, wantMax: 12},
		{name: "log", values: map[string]any{"db.url": "postgres://u:p@localhost:5432/db?pool_max_conns=7",
			"db.logConnections": true}, wantMax: 7, wantHook: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := viper.New()
			for k, v := range tt.values {
				c.Set(k, v)
			}
			got, err := newPoolConfig(c)
			if tt.wantErr {
				assert.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.wantMax, got.MaxConns)
			assert.Equal(t, tt.wantHook, got.AfterConnect != nil)
		})
	}
}

func TestMigrationStatements(t *testing.T) {
	joined := ""
	for _, s := range migrationStatements {
		joined += s
	}
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS recordings")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS email_lock")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS gue_jobs")
}
