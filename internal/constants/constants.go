// Package constants holds defaults shared by the service and the CLI.
package constants

import "time"

const (
	// DefaultListenAddress is where the HTTP service listens unless
	// LISTEN_ADDRESS says otherwise.
	DefaultListenAddress = ":8080"

	// DefaultDBPath is the sqlite file holding the annotation run history.
	DefaultDBPath = "db/annotations.db"

	// DefaultBatchWorkers bounds how many images of a watched folder are
	// annotated at once.
	DefaultBatchWorkers = 2

	// DefaultBatchImageTimeout limits recognition and annotation of one
	// watched image.
	DefaultBatchImageTimeout = 2 * time.Minute

	// DefaultJobWorkers is the size of the annotate job worker pool.
	DefaultJobWorkers = 2

	// AnnotatedSuffix and ReportSuffix name the files written next to
	// each processed image.
	AnnotatedSuffix = ".annotated.png"
	ReportSuffix    = ".md"
)
