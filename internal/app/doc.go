// Package app composes the ServiceHub application: storage, domain services
// and the background workers that keep LLR tokens and payment orders moving.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── auth/               # JWT issuing and verification
//	├── domain/             # Pure data models
//	│   ├── account/        # Customers, administrators, mobile validation
//	│   ├── catalog/        # Services, input fields, per-user prices
//	│   ├── request/        # Service requests
//	│   ├── ledger/         # Wallet ledger entries
//	│   ├── llr/            # LLR exam tokens and status codes
//	│   ├── dlpdf/          # Generated licence PDFs
//	│   └── payment/        # Top-up orders
//	├── storage/            # Store interfaces
//	│   ├── memory/         # In-memory implementation for development and tests
//	│   └── postgres/       # PostgreSQL implementation
//	├── services/           # Business rules, one package per domain
//	├── httpapi/            # REST and websocket handlers
//	├── system/             # Lifecycle manager for background services
//	├── metrics/            # Prometheus collectors
//	└── runtime/            # Process wiring: database, cache, HTTP server
//
// # Dependency Direction
//
//	cmd/servicehub/
//	      │
//	      ▼
//	internal/app/runtime
//	      │
//	      ├──► internal/app/httpapi ──► internal/app (services)
//	      │
//	      └──► internal/app/storage/{memory,postgres}, internal/platform
//
// Services depend on storage interfaces and on each other only through the
// wallet and catalog services; handlers never touch storage directly.
//
// # Adding a Service Type
//
//  1. Add the model under internal/app/domain/<name>/
//  2. Add the store interface to internal/app/storage/interfaces.go
//  3. Implement it in storage/memory and storage/postgres (plus a migration)
//  4. Write the service in internal/app/services/<name>/, charging through
//     wallet.Reserve so provider failures release the hold
//  5. Wire it in application.go and add handlers in httpapi/handlers_<name>.go
package app
