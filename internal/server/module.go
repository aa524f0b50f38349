package server

import "go.uber.org/fx"

// Module provides the router and the HTTP server.
var Module = fx.Options(
	fx.Provide(NewRouter),
	fx.Provide(NewHTTPServer),
)
