package realtime

import "dashboard"

type Config struct {
	NatsURL      string
	TenantID     string
	JWTSecret    string
	RealtimePort string
}

// LoadConfig reads the environment only. The realtime service needs neither
// the database nor redis, so it does not go through dashboard.InitConfig.
func LoadConfig() Config {
	return Config{
		NatsURL:      dashboard.GetEnv("NATS_URL", "nats://localhost:4222"),
		TenantID:     dashboard.GetEnv("TENANT_ID", "default"),
		JWTSecret:    dashboard.GetEnv("JWT_SECRET", ""),
		RealtimePort: dashboard.GetEnv("REALTIME_PORT", ":8081"),
	}
}
