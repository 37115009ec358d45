package lowcoder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config consolidates the settings of the importer, the generator and the
// persistence layer.
type Config struct {
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Import     ImportConfig     `json:"import" yaml:"import"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	DuckDB     DuckDBConfig     `json:"duckdb" yaml:"duckdb"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Database        string        `json:"database" yaml:"database"`
	Username        string        `json:"username" yaml:"username"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"sslMode" yaml:"sslMode"`
	MaxConnections  int           `json:"maxConnections" yaml:"maxConnections"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`
	UseIAM          bool          `json:"useIAM" yaml:"useIAM"`
	Region          string        `json:"region" yaml:"region"`
	TableNames      TableNames    `json:"tableNames" yaml:"tableNames"`
}

// TableNames are the relational tables backing the schema repository.
type TableNames struct {
	Schemas   string `json:"schemas" yaml:"schemas"`
	Tables    string `json:"tables" yaml:"tables"`
	Fields    string `json:"fields" yaml:"fields"`
	Documents string `json:"documents" yaml:"documents"`
	Sheets    string `json:"sheets" yaml:"sheets"`
	Headlines string `json:"headlines" yaml:"headlines"`
	Columns   string `json:"columns" yaml:"columns"`
}

// ImportConfig tunes spreadsheet reading and type inference.
type ImportConfig struct {
	SourceTimezone    string   `json:"sourceTimezone" yaml:"sourceTimezone"`
	ChoiceMaxRatio    float64  `json:"choiceMaxRatio" yaml:"choiceMaxRatio"`
	ChoiceMaxCount    int      `json:"choiceMaxCount" yaml:"choiceMaxCount"`
	UniqueMinValues   int      `json:"uniqueMinValues" yaml:"uniqueMinValues"`
	CharLengthSteps   []int    `json:"charLengthSteps" yaml:"charLengthSteps"`
	AllowedExtensions []string `json:"allowedExtensions" yaml:"allowedExtensions"`
	DecimalSeparator  string   `json:"decimalSeparator" yaml:"decimalSeparator"`
	// PreserveMainEntity keeps a manual main entity choice on re-import
	// instead of promoting the first sheet.
	PreserveMainEntity bool `json:"preserveMainEntity" yaml:"preserveMainEntity"`
}

// GenerationConfig contains code generation settings
type GenerationConfig struct {
	WorkDir               string `json:"workDir" yaml:"workDir"`
	AppName               string `json:"appName" yaml:"appName"`
	CookiecutterBinary    string `json:"cookiecutterBinary" yaml:"cookiecutterBinary"`
	FormatterBinary       string `json:"formatterBinary" yaml:"formatterBinary"`
	FormatterEnabled      bool   `json:"formatterEnabled" yaml:"formatterEnabled"`
	AutocompleteMaxFields int    `json:"autocompleteMaxFields" yaml:"autocompleteMaxFields"`
	ArchivePrefix         string `json:"archivePrefix" yaml:"archivePrefix"`
}

// StorageConfig selects where uploaded documents and generated archives live.
type StorageConfig struct {
	Backend      string `json:"backend" yaml:"backend"` // filesystem, s3
	Directory    string `json:"directory" yaml:"directory"`
	S3Bucket     string `json:"s3Bucket" yaml:"s3Bucket"`
	S3Region     string `json:"s3Region" yaml:"s3Region"`
	S3Endpoint   string `json:"s3Endpoint" yaml:"s3Endpoint"`
	S3AccessKey  string `json:"s3AccessKey" yaml:"s3AccessKey"`
	S3SecretKey  string `json:"s3SecretKey" yaml:"s3SecretKey"`
	S3Prefix     string `json:"s3Prefix" yaml:"s3Prefix"`
	UsePathStyle bool   `json:"usePathStyle" yaml:"usePathStyle"`
}

// DuckDBConfig configures the embedded engine used to read CSV sources.
type DuckDBConfig struct {
	DBPath        string        `json:"dbPath" yaml:"dbPath"`
	MemoryLimitMB int           `json:"memoryLimitMB" yaml:"memoryLimitMB"`
	Threads       int           `json:"threads" yaml:"threads"`
	QueryTimeout  time.Duration `json:"queryTimeout" yaml:"queryTimeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // json, console
}

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

const (
	StorageBackendFilesystem = "filesystem"
	StorageBackendS3         = "s3"
)

// DefaultCharLengthSteps are the max_length buckets for text columns.
var DefaultCharLengthSteps = []int{10, 30, 60, 100, 200, 1000, 2000}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lowcoder",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			TableNames:      DefaultTableNames(),
		},
		Import: ImportConfig{
			SourceTimezone:    "Europe/Berlin",
			ChoiceMaxRatio:    50,
			ChoiceMaxCount:    50,
			UniqueMinValues:   50,
			CharLengthSteps:   append([]int(nil), DefaultCharLengthSteps...),
			AllowedExtensions: []string{".csv", ".xlsx"},
			DecimalSeparator:  ",",
		},
		Generation: GenerationConfig{
			WorkDir:               ".",
			AppName:               "core",
			CookiecutterBinary:    "cookiecutter",
			FormatterBinary:       "black",
			FormatterEnabled:      true,
			AutocompleteMaxFields: 20,
			ArchivePrefix:         "deployed",
		},
		Storage: StorageConfig{
			Backend:   StorageBackendFilesystem,
			Directory: "media",
			S3Region:  "us-east-1",
		},
		DuckDB: DuckDBConfig{
			QueryTimeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}

// DefaultTableNames returns the table names created by init-db.
func DefaultTableNames() TableNames {
	return TableNames{
		Schemas:   "lowcoder_schemas",
		Tables:    "lowcoder_tables",
		Fields:    "lowcoder_fields",
		Documents: "lowcoder_documents",
		Sheets:    "lowcoder_sheets",
		Headlines: "lowcoder_headlines",
		Columns:   "lowcoder_columns",
	}
}

// LoadConfig decodes a JSON or YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SourceLocation resolves the configured source timezone.
func (c ImportConfig) SourceLocation() (*time.Location, error) {
	if c.SourceTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.SourceTimezone)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}
	names := c.Database.TableNames
	for field, value := range map[string]string{
		"database.tableNames.schemas":   names.Schemas,
		"database.tableNames.tables":    names.Tables,
		"database.tableNames.fields":    names.Fields,
		"database.tableNames.documents": names.Documents,
		"database.tableNames.sheets":    names.Sheets,
		"database.tableNames.headlines": names.Headlines,
		"database.tableNames.columns":   names.Columns,
	} {
		if value == "" {
			return &ConfigError{Field: field, Message: "must not be empty"}
		}
	}

	if c.Import.ChoiceMaxRatio <= 0 || c.Import.ChoiceMaxRatio > 100 {
		return &ConfigError{Field: "import.choiceMaxRatio", Message: "must be in (0, 100]"}
	}
	if c.Import.ChoiceMaxCount <= 0 {
		return &ConfigError{Field: "import.choiceMaxCount", Message: "must be greater than 0"}
	}
	for i := 1; i < len(c.Import.CharLengthSteps); i++ {
		if c.Import.CharLengthSteps[i] <= c.Import.CharLengthSteps[i-1] {
			return &ConfigError{Field: "import.charLengthSteps", Message: "must be strictly increasing"}
		}
	}
	if len(c.Import.AllowedExtensions) == 0 {
		return &ConfigError{Field: "import.allowedExtensions", Message: "must not be empty"}
	}
	if _, err := c.Import.SourceLocation(); err != nil {
		return &ConfigError{Field: "import.sourceTimezone", Message: err.Error()}
	}

	if c.Generation.AppName == "" {
		return &ConfigError{Field: "generation.appName", Message: "must not be empty"}
	}
	if c.Generation.AutocompleteMaxFields < 0 {
		return &ConfigError{Field: "generation.autocompleteMaxFields", Message: "must not be negative"}
	}

	switch c.Storage.Backend {
	case StorageBackendFilesystem:
		if c.Storage.Directory == "" {
			return &ConfigError{Field: "storage.directory", Message: "required for filesystem backend"}
		}
	case StorageBackendS3:
		if c.Storage.S3Bucket == "" {
			return &ConfigError{Field: "storage.s3Bucket", Message: "required for s3 backend"}
		}
	default:
		return &ConfigError{Field: "storage.backend", Message: fmt.Sprintf("unsupported backend %q", c.Storage.Backend)}
	}

	if c.DuckDB.MemoryLimitMB < 0 {
		return &ConfigError{Field: "duckdb.memoryLimitMB", Message: "must be >= 0"}
	}

	switch c.Logging.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unsupported format %q", c.Logging.Format)}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
