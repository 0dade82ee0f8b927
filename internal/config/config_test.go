package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LoginWindow)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.FCMEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET"},
		{"bad window", map[string]string{"JWT_SECRET": "x", "LOGIN_WINDOW": "soon"}, "invalid LOGIN_WINDOW"},
		{"bad backend", map[string]string{"JWT_SECRET": "x", "STORE_BACKEND": "mongo"}, "invalid STORE_BACKEND"},
		{"firestore without project", map[string]string{"JWT_SECRET": "x", "STORE_BACKEND": "firestore"}, "FIREBASE_PROJECT_ID"},
		{"half bootstrap", map[string]string{"JWT_SECRET": "x", "BOOTSTRAP_ADMIN_NAME": "Mom"}, "BOOTSTRAP_ADMIN"},
		{"bad timezone", map[string]string{"JWT_SECRET": "x", "TIMEZONE": "Mars/Olympus"}, "invalid TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDevice(t *testing.T) {
	t.Setenv("DEVICE_ID", "tablet-1")
	t.Setenv("USER_ID", "kid")
	t.Setenv("USER_PIN", "1234")
	t.Setenv("ICE_SERVERS", "stun:stun.example.org:3478, ,turn:turn.example.org")
	t.Setenv("TIMEZONE", "Europe/Prague")

	cfg, err := LoadDevice()
	require.NoError(t, err)
	assert.Equal(t, []string{"stun:stun.example.org:3478", "turn:turn.example.org"}, cfg.ICEServers)
	assert.Equal(t, 60*time.Second, cfg.LockInterval)
	assert.Equal(t, 45*time.Second, cfg.RingTimeout)
	assert.Equal(t, "Europe/Prague", cfg.Timezone.String())
}

func TestLoadDeviceRejectsBadRingTimeout(t *testing.T) {
	t.Setenv("DEVICE_ID", "tablet-1")
	t.Setenv("USER_ID", "kid")
	t.Setenv("USER_PIN", "1234")

	t.Setenv("RING_TIMEOUT", "soon")
	_, err := LoadDevice()
	assert.ErrorContains(t, err, "invalid RING_TIMEOUT")

	t.Setenv("RING_TIMEOUT", "0s")
	_, err = LoadDevice()
	assert.ErrorContains(t, err, "RING_TIMEOUT")
}

func TestLoadDeviceRequiresIdentity(t *testing.T) {
	t.Setenv("DEVICE_ID", "")
	_, err := LoadDevice()
	assert.ErrorContains(t, err, "DEVICE_ID")
}
