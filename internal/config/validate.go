package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTools() error {
	if c.Tools.ProbeTimeoutSeconds < 0 {
		return errors.New("tools.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be zero (auto) or positive")
	}
	if c.Workers.KillGraceSeconds < 0 {
		return errors.New("workers.kill_grace_seconds must be positive")
	}
	if c.Workers.DrainTimeoutSeconds < 0 {
		return errors.New("workers.drain_timeout_seconds must be positive")
	}
	switch c.Workers.StopPolicy {
	case StopPolicyCancel, StopPolicyDrain:
	default:
		return fmt.Errorf("workers.stop_policy: unsupported value %q (use %q or %q)", c.Workers.StopPolicy, StopPolicyCancel, StopPolicyDrain)
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.SubscriberBuffer < 0 {
		return errors.New("events.subscriber_buffer must be positive")
	}
	if c.Events.ProgressIntervalMS < 0 {
		return errors.New("events.progress_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be positive")
	}
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
