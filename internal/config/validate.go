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
	if err := c.validateCompletion(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.TaskDir) == "" {
		return errors.New("paths.task_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateCompletion() error {
	if strings.TrimSpace(c.Completion.BaseURL) == "" {
		return errors.New("completion.base_url must be set")
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		return errors.New("completion.model must be set")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return errors.New("completion.temperature must be between 0 and 2")
	}
	if c.Completion.TimeoutSeconds <= 0 {
		return errors.New("completion.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if strings.TrimSpace(c.Embedding.BaseURL) == "" {
		return errors.New("embedding.base_url must be set")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		return errors.New("embedding.model must be set")
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return errors.New("embedding.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.MaxIterations < 1 {
		return errors.New("run.max_iterations must be at least 1")
	}
	if c.Run.ConvergenceThreshold <= 0 {
		return errors.New("run.convergence_threshold must be positive")
	}
	if c.Run.MinAbsoluteChange < 0 {
		return errors.New("run.min_absolute_change must not be negative")
	}
	if c.Run.EarlyStopFraction <= 0 || c.Run.EarlyStopFraction > 1 {
		return errors.New("run.early_stop_fraction must be in (0, 1]")
	}
	if c.Run.MaxWorkers < 1 {
		return errors.New("run.max_workers must be at least 1")
	}
	if c.Run.SampleCap < 0 {
		return errors.New("run.sample_cap must not be negative")
	}
	if c.Run.TopK < 0 {
		return errors.New("run.top_k must not be negative")
	}
	if c.Run.MinSimilarity < -1 || c.Run.MinSimilarity > 1 {
		return fmt.Errorf("run.min_similarity must be between -1 and 1, got %v", c.Run.MinSimilarity)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
