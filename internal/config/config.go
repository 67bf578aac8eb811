package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string
	DatabaseDSN    string

	SigningKey    []byte
	TokenDuration time.Duration

	InferenceURL     string
	InferenceTimeout time.Duration

	// LivenessWindowList bounds the age of a presence verdict for the
	// room-membership listing; LivenessWindowDetail does the same for the
	// room detail view.
	LivenessWindowList   time.Duration
	LivenessWindowDetail time.Duration
	PresenceGateEnabled  bool

	MaxRoomsPerUser         int
	MaxSubscriptionsPerUser int
	MinTrainingSamples      int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "localhost:8000")
	v.SetDefault("server.allowed_origins", "")
	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=geoping sslmode=disable")
	v.SetDefault("auth.token_duration", "168h")
	v.SetDefault("inference.url", "http://localhost:5000")
	v.SetDefault("inference.timeout", "10s")
	v.SetDefault("presence.window_list", "30s")
	v.SetDefault("presence.window_detail", "45s")
	v.SetDefault("presence.gate_enabled", false)
	v.SetDefault("limits.max_rooms_per_user", 3)
	v.SetDefault("limits.max_subscriptions_per_user", 10)
	v.SetDefault("training.min_samples", 30)
}

// Load reads configuration from the optional file at path plus GEOPING_*
// environment variables, env taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("geoping")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	secret := v.GetString("auth.signing_secret")
	if secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	cfg := &Config{
		ServerAddr:              v.GetString("server.addr"),
		DatabaseDSN:             v.GetString("database.dsn"),
		SigningKey:              signingKey,
		TokenDuration:           v.GetDuration("auth.token_duration"),
		InferenceURL:            v.GetString("inference.url"),
		InferenceTimeout:        v.GetDuration("inference.timeout"),
		LivenessWindowList:      v.GetDuration("presence.window_list"),
		LivenessWindowDetail:    v.GetDuration("presence.window_detail"),
		PresenceGateEnabled:     v.GetBool("presence.gate_enabled"),
		MaxRoomsPerUser:         v.GetInt("limits.max_rooms_per_user"),
		MaxSubscriptionsPerUser: v.GetInt("limits.max_subscriptions_per_user"),
		MinTrainingSamples:      v.GetInt("training.min_samples"),
	}

	if origins := v.GetString("server.allowed_origins"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	if cfg.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("inference timeout must be positive")
	}
	if cfg.LivenessWindowList <= 0 || cfg.LivenessWindowDetail <= 0 {
		return nil, fmt.Errorf("liveness windows must be positive")
	}

	return cfg, nil
}
