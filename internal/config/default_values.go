package config

const (
	DefaultHistoryMaxLen     = 50
	DefaultHistoryKeepRecent = 30
	DefaultContextWindow     = 20

	DefaultProviderMaxTokens   = 500
	DefaultProviderTemperature = 0.7
)
