/*
Package config defines the typed, validated configuration for a sync
service.

Configuration is loaded once from YAML at process start and never
mutated afterwards. Every subsystem receives the fields it needs as
plain values; nothing reads the file again at runtime.

# Layout

	service:
	  name: media-sync
	  shutdown_grace_period: 30s
	log:
	  level: info
	  json: true
	executor:
	  max_concurrent_operations: 5
	  operation_timeout: 30m
	health:
	  check_interval: 5m
	  probe_timeout: 5s
	notifications:
	  ring_capacity: 1000
	  channel_send_timeout: 10s
	  channel_retry_attempts: 3
	  webhooks:
	    - name: ops
	      url: https://hooks.example.net/syncd
	      min_level: warn
	retry:
	  max_attempts: 3
	  base_delay: 1s
	  max_delay: 30s
	  strategy: exponential
	  multiplier: 2
	  jitter: full
	api:
	  enabled: true
	  listen: 127.0.0.1:9090
	storage:
	  data_dir: /var/lib/syncd
	content_types:
	  - name: movies
	    local_path: /data/movies
	    max_size: 10GB
	    priority: 1
	    schedule: "0 2 * * *"
	    filters:
	      - type: extension
	        extensions: [.mkv, .mp4]

# Units

Durations accept standard Go notation ("30s", "5m"). Sizes accept
binary byte units ("10GB", "500MB") or bare integers.

# Validation

Validate returns a configuration-class error (pkg/errdefs) on the
first violation: pool size out of [1, 20], non-positive budgets,
duplicate content type names, relative or traversing local paths, and
filter patterns that do not compile. The host treats any of these as
fatal at Start.

# Integration Points

This package integrates with:

  - pkg/service: consumes the whole tree at construction
  - pkg/retry: RetryConfig.Policy materializes the default policy
  - pkg/types: ContentTypeConfig converts to the planner's domain form
  - cmd/syncd: Load is called once per process
*/
package config
