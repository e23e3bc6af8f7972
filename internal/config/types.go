package config

// Config is the full bot configuration. YAML and JSON files are accepted;
// both are decoded strictly (unknown keys are rejected).
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Schedule ScheduleConfig `json:"schedule"`
	Notifier NotifierConfig `json:"notifier,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// ScheduleConfig controls delivery scheduling and the sweep cadence.
//
// All durations are Go duration strings; window edges and daily_at are "HH:MM"
// in the configured timezone.
type ScheduleConfig struct {
	Timezone string         `json:"timezone,omitempty"`
	Window   ScheduleWindow `json:"window"`
	// DailyAt is when the global reconcile pass runs. Default "04:00".
	DailyAt string `json:"daily_at,omitempty"`
	// SweepEvery is the period of both expiry sweep passes. Default "1m".
	SweepEvery string `json:"sweep_every,omitempty"`
	// DefaultQuestionsPerDay seeds new users. Default 1.
	DefaultQuestionsPerDay int `json:"default_questions_per_day,omitempty"`
	// AnswerTimeLimit is the per-question answering deadline. Default "10m".
	AnswerTimeLimit string `json:"answer_time_limit,omitempty"`
}

type ScheduleWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NotifierConfig controls the async notification pipeline.
type NotifierConfig struct {
	Workers    int    `json:"workers,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	RetryMax   int    `json:"retry_max,omitempty"`
	RetryBase  string `json:"retry_base,omitempty"` // Go duration string
}
