package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// File Writer Metrics
// =============================================================================

var (
	// BlocksWrittenTotal counts data blocks appended by writers
	BlocksWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_blocks_written_total",
			Help: "Total number of data blocks written",
		},
	)

	// BytesWrittenTotal tracks bytes written to stratum files, framing included
	BytesWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_bytes_written_total",
			Help: "Total bytes written to stratum files",
		},
	)

	// FilesFinishedTotal counts files whose footer was written
	FilesFinishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_files_finished_total",
			Help: "Total number of files finalized with a footer",
		},
	)
)

// =============================================================================
// File Reader Metrics
// =============================================================================

var (
	// BlocksReadTotal counts data blocks decoded by readers
	BlocksReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_blocks_read_total",
			Help: "Total number of data blocks decoded",
		},
	)

	// BytesReadTotal tracks block bytes read from stratum files
	BytesReadTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratum_bytes_read_total",
			Help: "Total block bytes read from stratum files",
		},
	)

	// BlockDecodeDurationSeconds measures time to read and decode one block
	BlockDecodeDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratum_block_decode_duration_seconds",
			Help:    "Time taken to read and decode a single data block",
			Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// FileErrorsTotal counts reader and writer failures by error type
	FileErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_file_errors_total",
			Help: "Total number of file read/write failures by error type",
		},
		[]string{"type"},
	)
)

// =============================================================================
// Logging Metrics
// =============================================================================

var (
	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratum_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)
)
