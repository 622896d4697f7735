// Package config loads irma-gateway configuration from YAML.
//
// # Example
//
//	server:
//	  http_addr: "localhost:5001"
//	  environment: "Production"
//	  shutdown_timeout: "10s"
//	  read_header_timeout: "10s"
//
//	database:
//	  path: "~/.local/share/irma/irma.db"
//
//	auth:
//	  jwt_secret: "${IRMA_JWT_SECRET}"   # empty disables bearer auth
//	  required_scope: "conversations"
//
//	responder:
//	  history_window: 20
//	  delay: "0s"
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//
// ${VAR} references are expanded from the environment before parsing and
// IRMA_DB_PATH overrides database.path. Unset optional fields take the
// Default* constants.
package config
