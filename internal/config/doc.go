// Package config provides configuration parsing for the reactivator server.
//
// The configuration is stored in reactivator.yaml. Every field is optional;
// missing values fall back to the defaults returned by New.
//
// # Configuration File Structure
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  shutdown_timeout: 10s
//
//	loop:
//	  queue_size: 256
//
//	log:
//	  level: info
//	  format: text
//
//	metrics:
//	  path: /metrics
//	  namespace: reactivator
//
//	tracing:
//	  tracer_name: reactivator
//
//	bindings:
//	  - field: now
//	    source: clock
//	    interval: 1s
//	  - field: network
//	    source: netstatus
//	    url: https://example.com/healthz
//	    interval: 5s
//	  - field: flags
//	    source: s3object
//	    bucket: my-bucket
//	    key: config/flags.json
//	    region: ${AWS_REGION:-us-east-1}
//
// String values of bindings support ${VAR} and ${VAR:-default} environment
// variable substitution.
//
// # Usage
//
//	cfg, err := config.Load("reactivator.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
