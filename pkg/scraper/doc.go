// Package scraper runs a search across the configured image sources and
// saves what passes the quality checks.
//
// A run walks the requested sources in order. For each source it pages
// through results until the per-source limit is met, the source reports it
// is exhausted, or several pages in a row produce nothing. Candidates are
// filtered before download:
//
//   - the configured filter expression must match
//   - a URL is downloaded at most once per run, across sources
//   - URLs already in the download history are skipped
//
// Downloads go through the worker pool in batches no larger than the
// remaining limit. Each file is staged, checked against the minimum size and
// resolution, and only then committed under its final name. A source that
// fails is recorded in the report and the run moves on.
//
// Usage:
//
//	s, err := scraper.New(cfg, scraper.Options{Keys: store.KeyFunc()})
//	if err != nil {
//	    return err
//	}
//	report, err := s.Run(ctx, scraper.Request{Query: "AE86", Sources: []string{"reddit"}})
//
// When archiving is enabled the output directory is zipped after the run and
// Report.ArchivePath is set.
package scraper
