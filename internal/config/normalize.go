package config

import (
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeTranscriber()
	c.normalizeDiscovery()
	c.normalizeRender()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.APIKey == "" {
		// Environment fallback mirrors how deployments inject secrets.
		c.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeTranscriber() {
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	if c.Transcriber.Model == "" {
		c.Transcriber.Model = defaultTranscriberModel
	}
	c.Transcriber.Language = strings.TrimSpace(c.Transcriber.Language)
}

func (c *Config) normalizeDiscovery() {
	if c.Discovery.MinClipSeconds <= 0 {
		c.Discovery.MinClipSeconds = defaultMinClipSeconds
	}
	if c.Discovery.MaxClipSeconds <= 0 {
		c.Discovery.MaxClipSeconds = defaultMaxClipSeconds
	}
	if c.Discovery.FrameIntervalSeconds <= 0 {
		c.Discovery.FrameIntervalSeconds = defaultFrameIntervalSeconds
	}
	if c.Discovery.DefaultCount <= 0 {
		c.Discovery.DefaultCount = defaultDiscoveryCount
	}
}

func (c *Config) normalizeRender() {
	if c.Render.Width <= 0 {
		c.Render.Width = defaultRenderWidth
	}
	if c.Render.Height <= 0 {
		c.Render.Height = defaultRenderHeight
	}
	c.Render.ReframeMode = strings.ToLower(strings.TrimSpace(c.Render.ReframeMode))
	if c.Render.ReframeMode == "" {
		c.Render.ReframeMode = defaultReframeMode
	}
	if c.Render.FontSize <= 0 {
		c.Render.FontSize = defaultFontSize
	}
	if c.Render.CaptionMarginV <= 0 {
		c.Render.CaptionMarginV = defaultCaptionMarginV
	}
	if strings.TrimSpace(c.Render.CTAText) == "" {
		c.Render.CTAText = defaultCTAText
	}
	if c.Render.CTASeconds < 0 {
		c.Render.CTASeconds = defaultCTASeconds
	}
	c.Render.Preset = strings.TrimSpace(c.Render.Preset)
	if c.Render.Preset == "" {
		c.Render.Preset = defaultRenderPreset
	}
	if c.Render.CRF <= 0 {
		c.Render.CRF = defaultRenderCRF
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.JobMaxAttempts <= 0 {
		c.Workflow.JobMaxAttempts = defaultJobMaxAttempts
	}
	if c.Workflow.RetryBackoffSeconds <= 0 {
		c.Workflow.RetryBackoffSeconds = defaultRetryBackoffSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
