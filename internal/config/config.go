package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
)

// Server is the backend configuration.
type Server struct {
	Port      string
	LogLevel  string
	LogFormat string
	StaticDir string

	StoreBackend            string
	FirebaseProjectID       string
	FirebaseCredentialsPath string
	FCMEnabled              bool

	RedisURL         string
	LoginMaxAttempts int
	LoginWindow      time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	BootstrapAdminName string
	BootstrapAdminPIN  string

	Timezone        *time.Location
	ShutdownTimeout time.Duration
}

// Device is the home-screen agent configuration.
type Device struct {
	ServerURL  string
	DeviceID   string
	UserID     string
	UserPIN    string
	ICEServers []string

	LockInterval time.Duration
	RingTimeout  time.Duration
	Timezone     *time.Location
	AutoAnswer   bool

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// newViper loads .env when present; real environment variables win.
func newViper() (*viper.Viper, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat .env: %w", err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.AutomaticEnv()
	return v, nil
}

func Load() (Server, error) {
	v, err := newViper()
	if err != nil {
		return Server{}, err
	}
	v.SetDefault("PORT", "8080")
	v.SetDefault("STATIC_DIR", "./static")
	v.SetDefault("STORE_BACKEND", StoreMemory)
	v.SetDefault("FCM_ENABLED", false)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_WINDOW", "15m")
	v.SetDefault("TOKEN_TTL", "720h")

	cfg := Server{
		Port:                    v.GetString("PORT"),
		LogLevel:                strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:               strings.ToLower(v.GetString("LOG_FORMAT")),
		StaticDir:               v.GetString("STATIC_DIR"),
		StoreBackend:            strings.ToLower(v.GetString("STORE_BACKEND")),
		FirebaseProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		FCMEnabled:              v.GetBool("FCM_ENABLED"),
		RedisURL:                v.GetString("REDIS_URL"),
		LoginMaxAttempts:        v.GetInt("LOGIN_MAX_ATTEMPTS"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		BootstrapAdminName:      v.GetString("BOOTSTRAP_ADMIN_NAME"),
		BootstrapAdminPIN:       v.GetString("BOOTSTRAP_ADMIN_PIN"),
	}

	if cfg.LoginWindow, err = duration(v, "LOGIN_WINDOW"); err != nil {
		return Server{}, err
	}
	if cfg.TokenTTL, err = duration(v, "TOKEN_TTL"); err != nil {
		return Server{}, err
	}
	if cfg.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return Server{}, err
	}
	if cfg.Timezone, err = location(v); err != nil {
		return Server{}, err
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StoreFirestore:
		if cfg.FirebaseProjectID == "" {
			return Server{}, fmt.Errorf("FIREBASE_PROJECT_ID must be set for the firestore backend")
		}
	default:
		return Server{}, fmt.Errorf("invalid STORE_BACKEND: %q", cfg.StoreBackend)
	}
	if cfg.FCMEnabled && cfg.StoreBackend != StoreFirestore && cfg.FirebaseProjectID == "" {
		return Server{}, fmt.Errorf("FCM_ENABLED needs FIREBASE_PROJECT_ID")
	}
	if cfg.JWTSecret == "" {
		return Server{}, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.LoginMaxAttempts <= 0 {
		return Server{}, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS: %d", cfg.LoginMaxAttempts)
	}
	if (cfg.BootstrapAdminName == "") != (cfg.BootstrapAdminPIN == "") {
		return Server{}, fmt.Errorf("BOOTSTRAP_ADMIN_NAME and BOOTSTRAP_ADMIN_PIN must be set together")
	}
	return cfg, nil
}

func LoadDevice() (Device, error) {
	v, err := newViper()
	if err != nil {
		return Device{}, err
	}
	v.SetDefault("SERVER_URL", "http://localhost:8080")
	v.SetDefault("LOCK_RECHECK_INTERVAL", "60s")
	v.SetDefault("RING_TIMEOUT", "45s")
	v.SetDefault("AUTO_ANSWER", false)

	cfg := Device{
		ServerURL:  v.GetString("SERVER_URL"),
		DeviceID:   v.GetString("DEVICE_ID"),
		UserID:     v.GetString("USER_ID"),
		UserPIN:    v.GetString("USER_PIN"),
		ICEServers: splitList(v.GetString("ICE_SERVERS")),
		AutoAnswer: v.GetBool("AUTO_ANSWER"),
		LogLevel:   strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:  strings.ToLower(v.GetString("LOG_FORMAT")),
	}
	if cfg.LockInterval, err = duration(v, "LOCK_RECHECK_INTERVAL"); err != nil {
		return Device{}, err
	}
	if cfg.RingTimeout, err = duration(v, "RING_TIMEOUT"); err != nil {
		return Device{}, err
	}
	if cfg.ShutdownTimeout, err = duration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return Device{}, err
	}
	if cfg.Timezone, err = location(v); err != nil {
		return Device{}, err
	}

	if cfg.DeviceID == "" {
		return Device{}, fmt.Errorf("DEVICE_ID must be set")
	}
	if cfg.UserID == "" || cfg.UserPIN == "" {
		return Device{}, fmt.Errorf("USER_ID and USER_PIN must be set")
	}
	if cfg.LockInterval <= 0 {
		return Device{}, fmt.Errorf("invalid LOCK_RECHECK_INTERVAL: must be positive")
	}
	if cfg.RingTimeout <= 0 {
		return Device{}, fmt.Errorf("invalid RING_TIMEOUT: must be positive")
	}
	return cfg, nil
}

// Address returns the listen address.
func (c Server) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func location(v *viper.Viper) (*time.Location, error) {
	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	return loc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
