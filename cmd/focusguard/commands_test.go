package main

import (
	"testing"

	"focusguard/internal/config"
)

func TestApplyServeFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantPort  int
		wantDebug bool
	}{
		{"none", nil, config.Default().Web.Port, false},
		{"port", []string{"--port", "9090"}, 9090, false},
		{"debug and port", []string{"--debug", "--port", "8181"}, 8181, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			applyServeFlags(cfg, tt.args)
			if cfg.Web.Port != tt.wantPort || cfg.Daemon.Debug != tt.wantDebug {
				t.Errorf("port=%d debug=%v, want port=%d debug=%v",
					cfg.Web.Port, cfg.Daemon.Debug, tt.wantPort, tt.wantDebug)
			}
		})
	}
}
