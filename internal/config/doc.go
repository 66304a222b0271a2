// Package config handles configuration loading for ragchat.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${RAGCHAT_JWT_SECRET}"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:8080"
//
//	database:
//	  path: "/var/lib/ragchat/ragchat.db"
//
//	auth:
//	  jwt_secret: "${RAGCHAT_JWT_SECRET}"
//	  token_ttl: "168h"            # 7 days, fixed at issuance
//
//	inference:
//	  url: "http://localhost:8000"
//	  internal_secret: "${RAGCHAT_INTERNAL_SECRET}"
//	  timeout: "10m"               # generation is slow
//
//	chat:
//	  context_window: 8
//	  default_conversation: "default"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Duration values use Go's time.ParseDuration syntax.
package config
