// Package joblog archives finished transcode jobs in SQLite.
//
// The scheduler keeps only live work in memory; when terminal jobs are
// cleared they are handed to the Store so operators can still review what
// ran, how long it took, and why it failed. The schema is embedded and
// versioned; a mismatched database must be deleted to be recreated.
package joblog
