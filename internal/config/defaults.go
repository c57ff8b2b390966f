package config

const (
	defaultWorkspaceDir = "~/.local/share/clipforge/workspace"
	defaultOutputDir    = "~/.local/share/clipforge/clips"
	defaultLogDir       = "~/.local/share/clipforge/logs"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "deepseek/deepseek-chat-v3-0324"
	defaultLLMTimeoutSeconds = 15

	defaultTranscriberModel = "large-v3-turbo"

	defaultMinClipSeconds       = 15
	defaultMaxClipSeconds       = 60
	defaultFrameIntervalSeconds = 10
	defaultDiscoveryCount       = 5

	defaultRenderWidth    = 1080
	defaultRenderHeight   = 1920
	defaultReframeMode    = "blurpad"
	defaultFontSize       = 64
	defaultCaptionMarginV = 320
	defaultCTAText        = "Follow for more"
	defaultCTASeconds     = 2
	defaultRenderPreset   = "veryfast"
	defaultRenderCRF      = 18

	defaultWorkers             = 2
	defaultQueuePollInterval   = 2
	defaultHeartbeatInterval   = 10
	defaultHeartbeatTimeout    = 120
	defaultJobMaxAttempts      = 3
	defaultRetryBackoffSeconds = 2

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcriber: Transcriber{
			Model: defaultTranscriberModel,
		},
		Discovery: Discovery{
			MinClipSeconds:       defaultMinClipSeconds,
			MaxClipSeconds:       defaultMaxClipSeconds,
			FrameIntervalSeconds: defaultFrameIntervalSeconds,
			DefaultCount:         defaultDiscoveryCount,
		},
		Render: Render{
			Width:          defaultRenderWidth,
			Height:         defaultRenderHeight,
			ReframeMode:    defaultReframeMode,
			FontSize:       defaultFontSize,
			CaptionMarginV: defaultCaptionMarginV,
			CTAText:        defaultCTAText,
			CTASeconds:     defaultCTASeconds,
			Preset:         defaultRenderPreset,
			CRF:            defaultRenderCRF,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			QueuePollInterval:   defaultQueuePollInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			JobMaxAttempts:      defaultJobMaxAttempts,
			RetryBackoffSeconds: defaultRetryBackoffSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
