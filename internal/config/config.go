package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/sipat/crew-scheduler/pkg/core/model"
)

// DefaultRunBudget is the wall-clock budget of a scheduling run when none is configured
const DefaultRunBudget = 2 * time.Minute

// Worker defaults: every day at 18:00, scheduling the next day
const (
	DefaultWorkerCron     = "0 18 * * *"
	DefaultWorkerLeadDays = 1
)

// ShiftTemplate describes a recurring shift. The RRULE decides which dates it runs on;
// start and end are clock times, and an end before the start means the shift ends the next day.
type ShiftTemplate struct {
	Code           string `yaml:"code" validate:"required"`
	RRule          string `yaml:"rrule" validate:"required"`
	Start          string `yaml:"start" validate:"required,datetime=15:04"`
	End            string `yaml:"end" validate:"required,datetime=15:04"`
	ServiceType    string `yaml:"serviceType" validate:"required"`
	Specialization string `yaml:"specialization,omitempty"`
	Origin         string `yaml:"origin,omitempty"`
	Destination    string `yaml:"destination,omitempty"`
	RouteKind      string `yaml:"routeKind" validate:"required,oneof=SHORT LONG"`
}

// DatabaseConfig holds the PostgreSQL connection settings
type DatabaseConfig struct {
	URL string `yaml:"url" validate:"required"`
}

// RedisConfig holds the settings of the Redis instance used for run locks
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// RepairConfig tunes the repair loop
type RepairConfig struct {
	MaxIterations int    `yaml:"maxIterations,omitempty" validate:"omitempty,min=1,max=3"`
	Strategy      string `yaml:"strategy,omitempty" validate:"omitempty,oneof=review unassign"`
}

// GmailConfig configures email notifications
type GmailConfig struct {
	UserID     string   `yaml:"userID" validate:"required"`
	Sender     string   `yaml:"sender,omitempty"`
	Recipients []string `yaml:"recipients" validate:"required,min=1,dive,email"`
}

// SheetsConfig configures the spreadsheet run log
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheetID" validate:"required"`
	RunsTab       string `yaml:"runsTab,omitempty"`
	AlertsTab     string `yaml:"alertsTab,omitempty"`
}

// NotificationsConfig lists the enabled notification sinks. Both Google sinks share the
// credentials in OAuthClientFile and one token cached under TokenDir.
type NotificationsConfig struct {
	OAuthClientFile string        `yaml:"oauthClientFile,omitempty"`
	TokenDir        string        `yaml:"tokenDir,omitempty"`
	Gmail           *GmailConfig  `yaml:"gmail,omitempty" validate:"omitempty"`
	Sheets          *SheetsConfig `yaml:"sheets,omitempty" validate:"omitempty"`
}

// WorkerConfig configures the daily scheduling worker. LeadDays is how many days after the
// run date the generated schedule is for; zero selects the default.
type WorkerConfig struct {
	Cron     string `yaml:"cron,omitempty"`
	LeadDays int    `yaml:"leadDays,omitempty" validate:"min=0,max=14"`
}

// Config represents the application configuration
type Config struct {
	Database       DatabaseConfig      `yaml:"database"`
	Timezone       string              `yaml:"timezone,omitempty" validate:"omitempty,timezone"`
	RunBudget      time.Duration       `yaml:"runBudget,omitempty" validate:"min=0"`
	Parameters     map[string]string   `yaml:"parameters,omitempty"`
	ShiftTemplates []ShiftTemplate     `yaml:"shiftTemplates" validate:"required,min=1,dive"`
	Repair         RepairConfig        `yaml:"repair,omitempty"`
	Redis          *RedisConfig        `yaml:"redis,omitempty" validate:"omitempty"`
	Notifications  NotificationsConfig `yaml:"notifications,omitempty"`
	Worker         WorkerConfig        `yaml:"worker,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Location returns the time zone service dates are computed in
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Budget returns the wall-clock budget of a scheduling run
func (c *Config) Budget() time.Duration {
	if c.RunBudget <= 0 {
		return DefaultRunBudget
	}
	return c.RunBudget
}

// WorkerSchedule returns the worker cron expression and lead days with defaults applied
func (c *Config) WorkerSchedule() (string, int) {
	spec, lead := c.Worker.Cron, c.Worker.LeadDays
	if spec == "" {
		spec = DefaultWorkerCron
	}
	if lead <= 0 {
		lead = DefaultWorkerLeadDays
	}
	return spec, lead
}

// ParameterDefaults returns the built-in parameters with the config file values applied
func (c *Config) ParameterDefaults() (model.Parameters, error) {
	return model.DefaultParameters().WithOverrides(c.Parameters)
}

// ValidateParameters checks a parameter snapshot is within its allowed ranges
func ValidateParameters(p model.Parameters) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	return nil
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="test" will look for "sipat_config.test.yaml".
// It looks in the current directory first, then in the user's home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct, the rrule of every shift template and the
// parameter defaults
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]bool)
	for i, tmpl := range cfg.ShiftTemplates {
		if _, err := rrule.StrToRRule(tmpl.RRule); err != nil {
			return fmt.Errorf("invalid rrule in shiftTemplates[%d]: %w", i, err)
		}
		if tmpl.Start == tmpl.End {
			return fmt.Errorf("shiftTemplates[%d] %s: start and end must differ", i, tmpl.Code)
		}
		if seen[tmpl.Code] {
			return fmt.Errorf("shiftTemplates[%d]: duplicate code %s", i, tmpl.Code)
		}
		seen[tmpl.Code] = true
	}

	params, err := cfg.ParameterDefaults()
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return ValidateParameters(params)
}

// findConfigFile searches for the environment's config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "sipat_config.yaml"
	if env != "" {
		configFileName = "sipat_config." + env + ".yaml"
	}
	return findFile(configFileName)
}

// findFile returns name if it exists in the current directory, else its path in the home
// directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
