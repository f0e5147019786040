// Package config loads and validates the server configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults (Default)
//  2. a .env file in the working directory, if present
//  3. an optional YAML file passed with --config
//  4. EXPLORER_* environment variables
//
// A few legacy names are honoured as fallbacks: PORT, ACCESS_TOKEN_SECRET
// and MONGODB_URL.
//
// # Environment
//
//	EXPLORER_PORT="8090"
//	EXPLORER_OPS_PORT="9090"
//	EXPLORER_TOKEN_SECRET="..."           # required
//	EXPLORER_STORAGE_TYPE="postgres"      # memory, postgres, sqlite, mongo
//	EXPLORER_POSTGRES_URL="postgres://localhost/explorer?sslmode=disable"
//	EXPLORER_REDIS_URL="redis://localhost:6379/0"
//	EXPLORER_RATE_LIMIT_REQUESTS="20"
//	EXPLORER_NASA_API_KEY="DEMO_KEY"
//	EXPLORER_LOG_LEVEL="info"             # debug, info, warn, error
//
// # YAML
//
//	server:
//	  port: "8090"
//	  read_timeout: 15s
//	storage:
//	  type: sqlite
//	  sqlite_path: /var/lib/explorer/users.db
//	nasa:
//	  cache_ttl: 30m
//
// # Usage
//
//	cfg, err := config.LoadConfig(configPath)
//	if err != nil {
//		return err
//	}
package config
