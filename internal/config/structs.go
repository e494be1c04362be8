//nolint:lll
package config

// Config is the complete notely configuration. It is loaded from a config
// file, NOTELY_* environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Database      DatabaseConfig      `mapstructure:"database" yaml:"database" json:"database"`
	OCR           OCRConfig           `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Preprocessing PreprocessingConfig `mapstructure:"preprocessing" yaml:"preprocessing" json:"preprocessing"`
	Worker        WorkerConfig        `mapstructure:"worker" yaml:"worker" json:"worker"`
	Server        ServerConfig        `mapstructure:"server" yaml:"server" json:"server"`
	Search        SearchConfig        `mapstructure:"search" yaml:"search" json:"search"`
}

// DatabaseConfig locates the notes database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// OCRConfig contains recognition settings.
type OCRConfig struct {
	EngineMode       int      `mapstructure:"oem" yaml:"oem" json:"oem"`
	SegmentationMode int      `mapstructure:"psm" yaml:"psm" json:"psm"`
	UseBestModel     bool     `mapstructure:"best" yaml:"best" json:"best"`
	Preprocess       bool     `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	TessdataDir      string   `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`
	Languages        []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	Engine           string   `mapstructure:"engine" yaml:"engine" json:"engine"`
	TesseractPath    string   `mapstructure:"tesseract_path" yaml:"tesseract_path" json:"tesseract_path"`
}

// PreprocessingConfig selects the preprocessing chain.
type PreprocessingConfig struct {
	Preset    string `mapstructure:"preset" yaml:"preset" json:"preset"`
	StepsFile string `mapstructure:"steps_file" yaml:"steps_file" json:"steps_file"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	PoolSize      int `mapstructure:"pool_size" yaml:"pool_size" json:"pool_size"`
	MessageBuffer int `mapstructure:"message_buffer" yaml:"message_buffer" json:"message_buffer"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting applies to the document endpoints only.
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// SearchConfig contains search defaults.
type SearchConfig struct {
	CaseSensitive bool   `mapstructure:"case_sensitive" yaml:"case_sensitive" json:"case_sensitive"`
	FuzzyDistance int    `mapstructure:"fuzzy_distance" yaml:"fuzzy_distance" json:"fuzzy_distance"`
	Mode          string `mapstructure:"mode" yaml:"mode" json:"mode"`
}
