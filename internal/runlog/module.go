package runlog

import "go.uber.org/fx"

// Module provides the run-log database and repository.
var Module = fx.Options(
	fx.Provide(OpenDB),
	fx.Provide(NewRepository),
)
