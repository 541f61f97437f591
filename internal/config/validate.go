package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateTextRecognition(); err != nil {
		return err
	}
	if err := c.validateGeocoding(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.ChunkSize <= 0 {
		return errors.New("scan.chunk_size must be positive")
	}
	if c.Scan.Parallelism <= 0 {
		return errors.New("scan.parallelism must be positive")
	}
	if len(c.Scan.Extensions) == 0 {
		return errors.New("scan.extensions must list at least one file extension")
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.BatchSize <= 0 {
		return errors.New("detection.batch_size must be positive")
	}
	if c.Detection.Parallelism <= 0 {
		return errors.New("detection.parallelism must be positive")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return errors.New("detection.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateTextRecognition() error {
	if c.TextRecognition.BatchSize <= 0 {
		return errors.New("text_recognition.batch_size must be positive")
	}
	if c.TextRecognition.Parallelism <= 0 {
		return errors.New("text_recognition.parallelism must be positive")
	}
	if c.TextRecognition.CacheSize <= 0 {
		return errors.New("text_recognition.cache_size must be positive")
	}
	return nil
}

func (c *Config) validateGeocoding() error {
	if !c.Geocoding.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Geocoding.BaseURL) == "" {
		return errors.New("geocoding.base_url must be set when geocoding is enabled")
	}
	if strings.TrimSpace(c.Geocoding.UserAgent) == "" {
		return errors.New("geocoding.user_agent must be set; nominatim rejects anonymous clients")
	}
	if c.Geocoding.RequestTimeout <= 0 {
		return errors.New("geocoding.request_timeout must be positive")
	}
	if c.Geocoding.RequestsPerSecond <= 0 {
		return errors.New("geocoding.requests_per_second must be positive")
	}
	if c.Geocoding.RetryCap <= 0 {
		return fmt.Errorf("geocoding.retry_cap must be positive, got %d", c.Geocoding.RetryCap)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.MaxStageAttempts <= 0 {
		return errors.New("workflow.max_stage_attempts must be positive")
	}
	if c.Workflow.PurgeRetentionDays <= 0 {
		return errors.New("workflow.purge_retention_days must be positive")
	}
	return nil
}
