package ingest

import "go.uber.org/fx"

// Module provides the fetcher and the scrape job.
var Module = fx.Options(
	fx.Provide(NewFetcher),
	fx.Provide(NewScrapeJob),
)
