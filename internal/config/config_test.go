package config_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/runzip/internal/codepage"
	"github.com/ossyrian/runzip/internal/config"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantSource *codepage.Encoding
		wantTarget codepage.Encoding
		wantErr    bool
	}{
		{
			name:       "defaults",
			cfg:        config.Config{},
			wantTarget: codepage.UTF8,
		},
		{
			name:       "forced source",
			cfg:        config.Config{Source: "cp1251", Target: "utf-8"},
			wantSource: ptr(codepage.Windows1251),
			wantTarget: codepage.UTF8,
		},
		{
			name:       "legacy target",
			cfg:        config.Config{Target: "koi8-u"},
			wantTarget: codepage.KOI8U,
		},
		{
			name:       "legacy windows overrides target",
			cfg:        config.Config{Target: "koi8-r", LegacyWindows: true},
			wantTarget: codepage.CP866,
		},
		{
			name:       "legacy windows overrides an invalid target too",
			cfg:        config.Config{Target: "bogus", LegacyWindows: true},
			wantTarget: codepage.CP866,
		},
		{
			name:    "unknown source",
			cfg:     config.Config{Source: "latin1"},
			wantErr: true,
		},
		{
			name:    "utf-8 is not a legacy source",
			cfg:     config.Config{Source: "utf-8"},
			wantErr: true,
		},
		{
			name:    "unknown target",
			cfg:     config.Config{Target: "ebcdic"},
			wantErr: true,
		},
		{
			name:    "source equals target",
			cfg:     config.Config{Source: "cp866", LegacyWindows: true},
			wantErr: true,
		},
		{
			name:    "negative size ceiling",
			cfg:     config.Config{MaxArchiveSize: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Resolve()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, got.Source)
			assert.Equal(t, tt.wantTarget, got.Target)
		})
	}
}

func TestResolve_CopiesFlags(t *testing.T) {
	cfg := config.Config{DryRun: true, Verbose: 2, Workers: 3, MaxArchiveSize: 1 << 20}

	got, err := cfg.Resolve()
	require.NoError(t, err)
	assert.True(t, got.DryRun)
	assert.Equal(t, 2, got.Verbosity)
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, int64(1<<20), got.MaxArchiveSize)

	got, err = (&config.Config{}).Resolve()
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), got.Workers)
}

func TestEffectiveLogLevel(t *testing.T) {
	assert.Equal(t, "info", (&config.Config{}).EffectiveLogLevel())
	assert.Equal(t, "warn", (&config.Config{LogLevel: "warn"}).EffectiveLogLevel())
	assert.Equal(t, "debug", (&config.Config{LogLevel: "warn", Verbose: 1}).EffectiveLogLevel())
}

func ptr[T any](v T) *T { return &v }
