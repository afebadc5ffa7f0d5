package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorker(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    ParsedWorker
		wantErr bool
	}{
		{
			name:  "host with colon suffix parsed as tag",
			entry: "10.0.0.1:7946",
			want:  ParsedWorker{Host: "10.0.0.1", Tags: []string{"7946"}},
		},
		{
			name:  "name and host, no tags",
			entry: "worker-1@10.0.0.1",
			want:  ParsedWorker{Name: "worker-1", Host: "10.0.0.1"},
		},
		{
			name:  "name, host, and tags",
			entry: "worker-1@10.0.0.1:gpu,fast",
			want:  ParsedWorker{Name: "worker-1", Host: "10.0.0.1", Tags: []string{"gpu", "fast"}},
		},
		{
			name:  "bare host",
			entry: "10.0.0.1",
			want:  ParsedWorker{Host: "10.0.0.1"},
		},
		{
			name:    "empty",
			entry:   "",
			wantErr: true,
		},
		{
			name:    "name with no host",
			entry:   "worker-1@",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWorker(tt.entry)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWorkers(t *testing.T) {
	got, err := ParseWorkers([]string{"a@10.0.0.1:x", "10.0.0.2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].Host)
	assert.Equal(t, "10.0.0.2", got[1].Host)

	_, err = ParseWorkers([]string{"10.0.0.1", ""})
	assert.Error(t, err)
}

func TestLoadValidatesMode(t *testing.T) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "local", string(cfg.Mode))
	assert.Equal(t, ":7946", cfg.Bind)

	require.NoError(t, cmd.Flags().Set("mode", "bogus"))
	_, err = Load(v)
	assert.Error(t, err)
}

func TestLoadReadsFlags(t *testing.T) {
	v := viper.New()
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd, v)
	require.NoError(t, cmd.Flags().Set("mode", "master"))
	require.NoError(t, cmd.Flags().Set("workers", "10.0.0.1,10.0.0.2"))
	require.NoError(t, cmd.Flags().Set("shutdown-with-workers", "true"))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "master", string(cfg.Mode))
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Workers)
	assert.True(t, cfg.ShutdownWithWorkers)
}
