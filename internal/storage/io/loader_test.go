package io

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/deadliner/internal/model"
)

func TestConfigYAMLRepository_GetConfig(t *testing.T) {
	tests := map[string]struct {
		fs     fstest.MapFS
		path   string
		expCfg model.DaemonConfig
		expErr bool
		errMsg string
	}{
		"Full config should load successfully": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte(`telegram:
  token: "123456:ABC"
  poll_timeout: 20s
db_path: /var/lib/deadliner/deadliner.db
checks:
  on_no_response: fail
  no_response_grace: 30m
`),
				},
			},
			path: "config.yaml",
			expCfg: model.DaemonConfig{
				TelegramToken:    "123456:ABC",
				PollTimeout:      20 * time.Second,
				DBPath:           "/var/lib/deadliner/deadliner.db",
				NoResponsePolicy: model.NoResponseFail,
				NoResponseGrace:  30 * time.Minute,
			},
		},
		"Minimal config should get the defaults": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte(`telegram:
  token: "123456:ABC"
`),
				},
			},
			path: "config.yaml",
			expCfg: model.DaemonConfig{
				TelegramToken:    "123456:ABC",
				PollTimeout:      30 * time.Second,
				NoResponsePolicy: model.NoResponseWait,
				NoResponseGrace:  time.Hour,
			},
		},
		"Missing token should fail": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte(`db_path: /tmp/deadliner.db
`),
				},
			},
			path:   "config.yaml",
			expErr: true,
			errMsg: "telegram token is required",
		},
		"Unknown no-response policy should fail": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte(`telegram:
  token: "123456:ABC"
checks:
  on_no_response: explode
`),
				},
			},
			path:   "config.yaml",
			expErr: true,
			errMsg: "on_no_response",
		},
		"Negative grace should fail": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte(`telegram:
  token: "123456:ABC"
checks:
  no_response_grace: -5m
`),
				},
			},
			path:   "config.yaml",
			expErr: true,
			errMsg: "no_response_grace",
		},
		"Invalid YAML should fail": {
			fs: fstest.MapFS{
				"config.yaml": &fstest.MapFile{
					Data: []byte("telegram: [unclosed"),
				},
			},
			path:   "config.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
		"Missing file should fail": {
			fs:     fstest.MapFS{},
			path:   "missing.yaml",
			expErr: true,
			errMsg: "reading config file",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewConfigYAMLRepository(test.fs)

			cfg, err := repo.GetConfig(context.Background(), test.path)

			if test.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.expCfg, cfg)
			}
		})
	}
}
