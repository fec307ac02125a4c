package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "minimal", cfg: Config{ItemsPath: "items.json"}},
		{name: "no items", cfg: Config{}, wantErr: "ItemsPath is a required configuration field"},
		{name: "bad executor", cfg: Config{ItemsPath: "i", Executor: "dask"}, wantErr: "invalid executor"},
		{name: "negative workers", cfg: Config{ItemsPath: "i", Workers: -1}, wantErr: "invalid workers"},
		{name: "negative resolution", cfg: Config{ItemsPath: "i", Resolution: -10}, wantErr: "invalid resolution"},
		{name: "negative preview", cfg: Config{ItemsPath: "i", PreviewSize: -1}, wantErr: "invalid preview size"},
		{name: "bad port", cfg: Config{ItemsPath: "i", HealthcheckPort: 70000}, wantErr: "invalid healthcheck port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewConfig(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultPreviewSize, got.PreviewSize)
		})
	}
}
