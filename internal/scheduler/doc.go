// Package scheduler runs named maintenance and enrichment jobs one at a
// time. Names deduplicate work while a job is in flight, runs-after edges
// order dependent jobs, and failures retry with a linearly growing delay
// until the configured attempt budget is spent.
package scheduler
