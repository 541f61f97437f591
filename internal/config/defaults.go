package config

const (
	defaultLibraryDir         = "~/Pictures"
	defaultDataDir            = "~/.local/share/lumen"
	defaultLogDir             = "~/.local/share/lumen/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultScanChunkSize      = 500
	defaultScanWorkers        = 4
	defaultDetectionBatchSize = 50
	defaultDetectionWorkers   = 4
	defaultTextBatchSize      = 20
	defaultTextWorkers        = 4
	defaultTextCacheSize      = 256
	defaultGeocodeBaseURL     = "https://nominatim.openstreetmap.org/reverse"
	defaultGeocodeUserAgent   = "Lumen/0.1 (media library enrichment)"
	defaultGeocodeTimeout     = 10
	defaultGeocodeRetryCap    = 3
	defaultErrorRetryInterval = 30
	defaultMaxStageAttempts   = 3
	defaultPurgeRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Scan: Scan{
			ChunkSize:   defaultScanChunkSize,
			Parallelism: defaultScanWorkers,
			Extensions:  []string{".jpg", ".jpeg", ".png", ".gif", ".heic", ".mp4", ".mov"},
		},
		Detection: Detection{
			BatchSize:     defaultDetectionBatchSize,
			Parallelism:   defaultDetectionWorkers,
			MinConfidence: 0.0,
		},
		TextRecognition: TextRecognition{
			Enabled:     false,
			BatchSize:   defaultTextBatchSize,
			Parallelism: defaultTextWorkers,
			CacheSize:   defaultTextCacheSize,
		},
		Geocoding: Geocoding{
			Enabled:           true,
			BaseURL:           defaultGeocodeBaseURL,
			UserAgent:         defaultGeocodeUserAgent,
			RequestTimeout:    defaultGeocodeTimeout,
			RequestsPerSecond: 1,
			RetryCap:          defaultGeocodeRetryCap,
		},
		Workflow: Workflow{
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxStageAttempts:   defaultMaxStageAttempts,
			PurgeRetentionDays: defaultPurgeRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
