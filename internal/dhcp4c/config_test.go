package dhcp4c

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *ClientConfig {
	return &ClientConfig{
		Logger:        discardLogger(),
		InterfaceName: "eth0",
		HardwareAddr:  net.HardwareAddr{2, 0, 0, 0, 0, 1},
		StateDir:      "/tmp",
		ConfigDir:     "/tmp",
		PackageName:   "dhcp4c",
	}
}

func TestClientConfig_Validate_ok(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validConfig().Validate())
}

func TestClientConfig_Validate_missingLogger(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Logger = nil
	assert.Error(t, cfg.Validate())
}

func TestClientConfig_Validate_missingInterfaceName(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.InterfaceName = ""
	assert.Error(t, cfg.Validate())
}

func TestClientConfig_Validate_missingHardwareAddr(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.HardwareAddr = nil
	assert.Error(t, cfg.Validate())
}

func TestClientConfig_Validate_negativeDurations(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Timeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.OfferTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.RebootTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestClientConfig_Validate_negativeMaxConflicts(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxConflicts = -1
	assert.Error(t, cfg.Validate())
}

func TestClientConfig_maxConflicts_defaultsTo10(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, 10, cfg.maxConflicts())

	cfg.MaxConflicts = 3
	assert.Equal(t, 3, cfg.maxConflicts())
}

func TestClientConfig_Validate_nilReceiver(t *testing.T) {
	t.Parallel()

	var cfg *ClientConfig
	assert.Error(t, cfg.Validate())
}
