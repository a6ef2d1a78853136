package config

type Config struct {
	HTTP    HTTPConfig    `json:"http"`
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`

	// Scheduler controls the publication scheduler and its consistency auditor.
	Scheduler SchedulerConfig `json:"scheduler"`

	// Notify controls the dispatcher and the delivery channels.
	Notify NotifyConfig `json:"notify"`
}

// HTTPConfig controls the API/stream server.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// WriteTimeout defaults to 0 (disabled) so long-lived notification streams
// are not cut off by the server.
type HTTPConfig struct {
	Addr         string `json:"addr,omitempty"` // default: "127.0.0.1:8090"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
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

// StorageConfig locates the SQLite database holding content items and
// notification preferences.
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls the publication scheduler.
//
// Defaults (when fields are omitted/zero):
//   - dispatch_timeout: "30s"
//   - audit_interval: "5m" (use "0s" to disable the periodic audit)
type SchedulerConfig struct {
	DispatchTimeout string `json:"dispatch_timeout,omitempty"`
	AuditInterval   string `json:"audit_interval,omitempty"`
}

// NotifyConfig controls fan-out delivery.
//
// RatePerSec bounds outbound sends across all channels so one firing with a
// large subscriber list cannot saturate the process.
type NotifyConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`

	Push     PushChannelConfig     `json:"push"`
	Email    EmailChannelConfig    `json:"email"`
	SMS      SMSChannelConfig      `json:"sms"`
	Telegram TelegramChannelConfig `json:"telegram"`
}

type PushChannelConfig struct {
	Enabled      bool   `json:"enabled"`
	WriteTimeout string `json:"write_timeout,omitempty"` // per-connection write bound
}

type EmailChannelConfig struct {
	Enabled  bool   `json:"enabled"`
	SMTPAddr string `json:"smtp_addr,omitempty"` // host:port
	From     string `json:"from,omitempty"`
}

type SMSChannelConfig struct {
	Enabled bool `json:"enabled"`
}

type TelegramChannelConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}
