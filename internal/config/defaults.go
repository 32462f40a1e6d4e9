package config

const (
	defaultDataDir                  = "~/.local/share/crucible/data"
	defaultTaskDir                  = "~/.local/share/crucible/tasks"
	defaultLogDir                   = "~/.local/share/crucible/logs"
	defaultCompletionBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultCompletionModel          = "deepseek/deepseek-chat"
	defaultCompletionTimeoutSeconds = 120
	defaultCompletionTemperature    = 0.1
	defaultCompletionReferer        = "https://github.com/crucible-ml/crucible"
	defaultCompletionTitle          = "Crucible Property Prediction"
	defaultEmbeddingBaseURL         = "https://api.openai.com/v1/embeddings"
	defaultEmbeddingModel           = "text-embedding-3-small"
	defaultEmbeddingTimeoutSeconds  = 60
	defaultMaxIterations            = 5
	defaultConvergenceThreshold     = 0.05
	defaultMinAbsoluteChange        = 0.001
	defaultEarlyStopFraction        = 0.8
	defaultMaxWorkers               = 4
	defaultTopK                     = 5
	defaultMinSimilarity            = 0.0
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			TaskDir: defaultTaskDir,
			LogDir:  defaultLogDir,
		},
		Completion: Completion{
			BaseURL:        defaultCompletionBaseURL,
			Model:          defaultCompletionModel,
			Temperature:    defaultCompletionTemperature,
			Referer:        defaultCompletionReferer,
			Title:          defaultCompletionTitle,
			TimeoutSeconds: defaultCompletionTimeoutSeconds,
		},
		Embedding: Embedding{
			BaseURL:        defaultEmbeddingBaseURL,
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeoutSeconds,
		},
		Run: Run{
			MaxIterations:        defaultMaxIterations,
			ConvergenceThreshold: defaultConvergenceThreshold,
			MinAbsoluteChange:    defaultMinAbsoluteChange,
			EarlyStop:            true,
			EarlyStopFraction:    defaultEarlyStopFraction,
			MaxWorkers:           defaultMaxWorkers,
			TopK:                 defaultTopK,
			MinSimilarity:        defaultMinSimilarity,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
