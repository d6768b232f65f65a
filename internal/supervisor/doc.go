// Fableboard - Collaborative Story Planning Canvas
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fableboard

/*
Package supervisor provides process supervision for Fableboard using
suture v4.

The supervisor tree organizes long-running services into three layers so
failures stay contained:

	RootSupervisor ("fableboard")
	├── DataSupervisor ("data-layer")
	│   └── SweeperService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── RelayHubService
	│   └── EventPumpService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart automatically with exponential backoff; a crash
in the relay does not interrupt REST traffic, and sweeper failures affect
neither. Supervision events are logged through sutureslog onto the
application's zerolog output.

Service wrappers live in the services subpackage. Each wraps one
component behind suture.Service: Serve(ctx) blocks until the context is
canceled or the component fails, and String() names the service in
supervision logs.
*/
package supervisor
