package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// State backends for the incident memory.
const (
	StateFile     = "file"
	StateMemory   = "memory"
	StateRedis    = "redis"
	StatePostgres = "postgres"
)

// Analyst backends.
const (
	AnalystHTTP   = "http"
	AnalystClaude = "claude"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	PolicyFile            string

	StateBackend  string
	StateFile     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DatabaseURL   string
	DedupWindow   time.Duration

	AssetInventory string
	AssetReload    string

	AnalystBackend string
	ClaudeAPIKey   string
	ClaudeModel    string

	SlackWebhookURL string

	JiraURL        string
	JiraUser       string
	JiraAPIToken   string
	JiraAnalystID  string
	JiraAPIVersion string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on ingest routes (empty = open)")
	fs.StringVar(&c.PolicyFile, "policy-file", "", "YAML policy file (org, Jira project, business hours, endpoints)")

	fs.StringVar(&c.StateBackend, "state-backend", StateFile, "incident memory backend: file, memory, redis or postgres")
	fs.StringVar(&c.StateFile, "state-file", "incident_state.json", "JSON state file for the file backend")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the redis backend (host:port)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", "", "Redis key prefix (empty = soarbridge:actor)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the postgres backend")
	fs.DurationVar(&c.DedupWindow, "dedup-window", 0, "age after which a known actor opens a new case (0 = never)")

	fs.StringVar(&c.AssetInventory, "asset-inventory", "assets.csv", "asset inventory file (.csv or .yaml)")
	fs.StringVar(&c.AssetReload, "asset-reload", "", "cron schedule for inventory reload (empty = load once)")

	fs.StringVar(&c.AnalystBackend, "analyst-backend", AnalystHTTP, "analyst backend: http or claude")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the claude analyst backend")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-5", "Claude model for the claude analyst backend")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications (empty = disabled)")

	fs.StringVar(&c.JiraURL, "jira-url", "", "Jira site base URL")
	fs.StringVar(&c.JiraUser, "jira-user", "", "Jira user email")
	fs.StringVar(&c.JiraAPIToken, "jira-api-token", "", "Jira API token")
	fs.StringVar(&c.JiraAnalystID, "jira-analyst-id", "", "Jira accountId assigned to true-positive cases")
	fs.StringVar(&c.JiraAPIVersion, "jira-api-version", "3", "Jira REST API version: 2 or 3")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.StateBackend {
	case StateFile:
		if c.StateFile == "" {
			errs = append(errs, errors.New("STATE_FILE is required for the file backend"))
		}
	case StateMemory:
	case StateRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis backend"))
		}
	case StatePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STATE_BACKEND %q (must be file, memory, redis or postgres)", c.StateBackend))
	}

	if c.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_WINDOW %s (must be >= 0)", c.DedupWindow))
	}

	switch c.AnalystBackend {
	case AnalystHTTP:
	case AnalystClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required for the claude analyst"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required for the claude analyst"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ANALYST_BACKEND %q (must be http or claude)", c.AnalystBackend))
	}

	// Jira is the system of record; the bridge cannot run without it
	if c.JiraURL == "" {
		errs = append(errs, errors.New("JIRA_URL is required"))
	}
	if c.JiraUser == "" {
		errs = append(errs, errors.New("JIRA_USER is required"))
	}
	if c.JiraAPIToken == "" {
		errs = append(errs, errors.New("JIRA_API_TOKEN is required"))
	}
	if c.JiraAPIVersion != "2" && c.JiraAPIVersion != "3" {
		errs = append(errs, fmt.Errorf("invalid JIRA_API_VERSION %q (must be 2 or 3)", c.JiraAPIVersion))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
