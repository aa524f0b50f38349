package feed

import "go.uber.org/fx"

// Module provides the system clock and the feed service.
var Module = fx.Options(
	fx.Provide(NewSystemClock),
	fx.Provide(NewService),
)
