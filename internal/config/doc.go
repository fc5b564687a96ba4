// Package config loads the habit-sync client configuration from TOML.
//
// # Discovery
//
// Load uses the explicit path when given and ~/.config/habit-sync/config.toml
// otherwise. A missing file is not an error: Default() is returned so the
// client runs without any configuration.
//
// # TOML Format
//
//	api_base_url = "https://habits.example.com/api"
//	api_token    = "..."
//	storage_dir  = "~/.local/share/habit-sync"
//	admin_bind   = "127.0.0.1:7490"
//	log_level    = "debug"
//	log_buffer   = 500
//
//	[retry]
//	retries          = 3
//	initial_delay_ms = 1000
//	max_delay_ms     = 10000
//
//	[cache]
//	ttl_minutes = 5
//
//	[probe]
//	url               = "https://habits.example.com/api/health"
//	interval_ms       = 5000
//	timeout_ms        = 2000
//	failure_threshold = 2
//	success_threshold = 1
//
//	[refresh]
//	enabled     = true
//	interval_ms = 60000
//
//	[sweep]
//	enabled     = true
//	interval_ms = 60000
//
// Every field is optional. Empty strings and non-positive numbers keep the
// default, so only the two enabled switches can turn something off. Tilde
// paths are expanded. The probe URL defaults to api_base_url + "/health".
package config
