package main

import "time"

type Config struct {
	Host                string        `env:"HOST,default=localhost"`
	Port                int           `env:"PORT,default=8080"`
	BadgerFilepath      string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
	SessionBufferSize   int           `env:"SESSION_BUFFER_SIZE,default=64"`
	MaxCiphertextBytes  int           `env:"MAX_CIPHERTEXT_BYTES,default=16384"`
	AllowedOrigins      string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	DebugInspector      bool          `env:"DEBUG_INSPECTOR,default=false"`
	DebugInspectorPort  int           `env:"DEBUG_INSPECTOR_PORT,default=6060"`
}
