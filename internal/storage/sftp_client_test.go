package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSFTPClient_RequiresCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  SFTPConfig
	}{
		{"missing host", SFTPConfig{User: "u123", Password: "secret"}},
		{"missing user", SFTPConfig{Host: "u123.your-storagebox.de", Password: "secret"}},
		{"missing password", SFTPConfig{Host: "u123.your-storagebox.de", User: "u123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSFTPClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewSFTPClient_Defaults(t *testing.T) {
	client, err := NewSFTPClient(SFTPConfig{
		Host:     "u123.your-storagebox.de",
		User:     "u123",
		Password: "secret",
		BasePath: "/backups/enplerp",
	})
	require.NoError(t, err)
	assert.Equal(t, 22, client.config.Port)
	assert.Equal(t, "/backups/enplerp", client.BasePath())

	// never connected, nothing to close
	assert.NoError(t, client.Close())
}
