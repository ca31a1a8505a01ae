// Package config defines configuration structures for the aicte CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (a .env file is honoured)
//   - YAML configuration file
//
// Later sources win: defaults, then the file, then the environment, then
// flags.
//
// # Environment
//
//	DOWNLOAD_CONCURRENCY  download workers            (2)
//	DOWNLOAD_RETRIES      retries per region          (3)
//	MERGE_CONCURRENCY     enrichment batch size       (8)
//	MERGE_RETRIES         retries per institution     (2)
//	RETRY_BASE_MS         enrichment backoff base     (300)
//	YEAR, COURSE          academic year and course id (2025-2026, 1)
//	AICTE_DATA_DIR        local artifact directory    (data)
//	AICTE_BUCKET          bucket URL, overrides AICTE_DATA_DIR
//	AICTE_LISTEN          API listen address          (:8080)
//	AICTE_RPS             upstream request rate, 0 = unlimited
//	AICTE_TIMEOUT         per-attempt timeout         (30s)
//	AICTE_POLITE_DELAY    pause between downloads     (300ms)
//	AICTE_INSTITUTE_ENDPOINT, AICTE_COURSE_ENDPOINT
//	AICTE_FIELDS          comma-separated institute field names
//	AICTE_CSV             also write institutions.csv after a download
//
// # File
//
//	data_dir: data
//	year: 2025-2026
//	upstream:
//	  timeout: 30s
//	  polite_delay: 300ms
//	download:
//	  concurrency: 2
//	  retries: 3
//	merge:
//	  concurrency: 8
//	  backoff: 300ms
package config
