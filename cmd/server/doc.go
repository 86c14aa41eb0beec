// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package main assembles the attribution measurement backend's process
supervision tree.

# Supervisor Tree

	RootSupervisor ("attributiond")
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub (engine state-change broadcasts)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router, internal/api)

The attribution engine itself (internal/attribution.Engine) is not a
supervised service: it is single-threaded and cooperative, called
directly by HTTP handlers under the Handler's reference, with no
background goroutine of its own.

# Environment Variables

	# Server
	PORT=3857
	LOG_LEVEL=info                # trace, debug, info, warn, error
	LOG_FORMAT=json                # json or console

	# Authentication (choose one mode)
	AUTH_MODE=jwt                  # jwt, basic, or none
	JWT_SECRET=<32+ chars>
	ADMIN_USERNAME=admin
	ADMIN_PASSWORD=<password>

	# Audit store
	DATABASE_PATH=./attribution.duckdb

	# Aggregation services (repeatable)
	AGGREGATORS_0_KEY=https://aggregator.example/report
	AGGREGATORS_0_NAME=example-aggregator

See .env.example for the complete reference.

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM: it stops
accepting new HTTP connections, waits up to 10s for in-flight requests
to complete, and closes the audit database connection.

# See Also

  - internal/attribution: the measurement engine
  - internal/api: HTTP handlers and routing
  - internal/config: configuration management
  - internal/supervisor: process supervision
*/
package main
