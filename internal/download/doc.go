// Package download fetches model files into a local directory and publishes
// cumulative job progress to a JSON file that another process polls.
//
// The transfer itself is opaque to the monitor: while a Fetcher runs, a
// polling loop infers progress from whatever growing file it can find (the
// destination, a cache staging file or a sibling temp file). Records are
// eventually consistent; a missed poll is corrected by the next one.
//
//   - fetcher.go: Fetcher interface and source selection
//   - hub.go: Hugging Face Hub over HTTPS
//   - oss.go: Aliyun OSS buckets (oss://bucket/prefix)
//   - locate.go: growing-file discovery
//   - monitor.go: per-file polling loop
//   - progress.go: progress records and the atomic progress file
//   - runner.go: job orchestration
package download
