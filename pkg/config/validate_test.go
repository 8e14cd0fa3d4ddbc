package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:    "bad bind address",
			mutate:  func(cfg *Config) { cfg.Server.Bind = "nonsense" },
			wantErr: true,
		},
		{
			name:    "tls cert without key",
			mutate:  func(cfg *Config) { cfg.Server.TLSCert = "/etc/veil/cert.pem" },
			wantErr: true,
		},
		{
			name: "tls cert and key together",
			mutate: func(cfg *Config) {
				cfg.Server.TLSCert = "/etc/veil/cert.pem"
				cfg.Server.TLSKey = "/etc/veil/key.pem"
			},
		},
		{
			name:    "bad interface address",
			mutate:  func(cfg *Config) { cfg.Upstream.Interface = "not-an-ip" },
			wantErr: true,
		},
		{
			name:   "valid interface address",
			mutate: func(cfg *Config) { cfg.Upstream.Interface = "192.0.2.10" },
		},
		{
			name:    "bad ipv6 subnet",
			mutate:  func(cfg *Config) { cfg.Upstream.IPv6Subnet = "2001:db8::" },
			wantErr: true,
		},
		{
			name:   "valid ipv6 subnet",
			mutate: func(cfg *Config) { cfg.Upstream.IPv6Subnet = "2001:db8::/32" },
		},
		{
			name:    "solver without client key",
			mutate:  func(cfg *Config) { cfg.Captcha.Solver.Provider = "yescaptcha" },
			wantErr: true,
		},
		{
			name: "ratelimit unknown strategy",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = true
				cfg.RateLimit.Strategy = "redis"
			},
			wantErr: true,
		},
		{
			name: "ratelimit sqlite strategy",
			mutate: func(cfg *Config) {
				cfg.RateLimit.Enabled = true
				cfg.RateLimit.Strategy = "sqlite"
			},
		},
		{
			name:    "bad preauth bind",
			mutate:  func(cfg *Config) { cfg.Preauth.Bind = "no-port" },
			wantErr: true,
		},
		{
			name:    "bad logging level",
			mutate:  func(cfg *Config) { cfg.Telemetry.Logging.Level = "loud" },
			wantErr: true,
		},
		{
			name:    "bad logging format",
			mutate:  func(cfg *Config) { cfg.Telemetry.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
