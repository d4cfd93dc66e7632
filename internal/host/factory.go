package host

import (
	"fmt"
	"time"

	"swvcs/internal/config"
	"swvcs/internal/vcs"
)

// NewDocumentHostFromConfig creates a DocumentHost based on the host config
// type. Type "none" yields a nil host: commits then fail with
// vcs.ErrHostUnavailable and reverts restore the file without a session.
func NewDocumentHostFromConfig(cfg config.HostConfig) (vcs.DocumentHost, error) {
	switch cfg.Type {
	case "bridge":
		if cfg.BridgeURL == "" {
			return nil, fmt.Errorf("bridge_url required for bridge host")
		}
		if cfg.TimeoutSeconds < 0 {
			return nil, fmt.Errorf("timeout_seconds must not be negative")
		}
		return NewBridgeClient(cfg.BridgeURL, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
	case "file":
		if cfg.WorkingFile == "" {
			return nil, fmt.Errorf("working_file required for file host")
		}
		return NewFileHost(cfg.WorkingFile), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown host type: %s", cfg.Type)
	}
}
