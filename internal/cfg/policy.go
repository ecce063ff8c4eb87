package cfg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Policy is the organisation-level configuration loaded from YAML. Every
// field can be overridden from the environment.
type Policy struct {
	System struct {
		OrgName           string `yaml:"org_name" env:"SOARBRIDGE_ORG_NAME" env-default:"Acme Corp"`
		OperatingTimezone string `yaml:"operating_timezone" env:"SOARBRIDGE_OPERATING_TIMEZONE" env-default:"Asia/Dubai"`
		BusinessHours     struct {
			Start int `yaml:"start" env:"SOARBRIDGE_BUSINESS_HOURS_START" env-default:"8"`
			End   int `yaml:"end" env:"SOARBRIDGE_BUSINESS_HOURS_END" env-default:"18"`
		} `yaml:"business_hours"`
		KnowledgeFile string `yaml:"knowledge_file" env:"SOARBRIDGE_KNOWLEDGE_FILE"`
	} `yaml:"system"`

	Jira struct {
		ProjectKey string `yaml:"project_key" env:"SOARBRIDGE_JIRA_PROJECT_KEY" env-default:"SEC"`
		Defaults   struct {
			IssueType string `yaml:"issue_type" env:"SOARBRIDGE_JIRA_ISSUE_TYPE" env-default:"Task"`
		} `yaml:"defaults"`
		Transitions struct {
			ArchiveID string `yaml:"archive_id" env:"SOARBRIDGE_JIRA_ARCHIVE_ID"`
		} `yaml:"transitions"`
	} `yaml:"jira_settings"`

	Network struct {
		AnalystEndpoint string `yaml:"ai_analyst_endpoint" env:"SOARBRIDGE_ANALYST_ENDPOINT"`
		AgentEndpoint   string `yaml:"agent_endpoint" env:"SOARBRIDGE_AGENT_ENDPOINT"`
	} `yaml:"network"`
}

// LoadPolicy reads path and applies env overrides. An empty path loads
// defaults and env only.
func LoadPolicy(path string) (*Policy, error) {
	var p Policy
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(&p)
	} else {
		err = cleanenv.ReadConfig(path, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return &p, nil
}

// Validate checks the Policy. analystHTTP reports whether the http analyst
// backend is in use, which needs an endpoint.
func (p *Policy) Validate(analystHTTP bool) error {
	var errs []error

	if _, err := time.LoadLocation(p.System.OperatingTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid operating_timezone %q: %w", p.System.OperatingTimezone, err))
	}
	bh := p.System.BusinessHours
	if bh.Start < 0 || bh.Start > 23 || bh.End < 0 || bh.End > 23 || bh.Start > bh.End {
		errs = append(errs, fmt.Errorf("invalid business_hours %d..%d (hours 0..23, start <= end)", bh.Start, bh.End))
	}
	if p.Jira.ProjectKey == "" {
		errs = append(errs, errors.New("jira_settings.project_key is required"))
	}
	if p.Jira.Defaults.IssueType == "" {
		errs = append(errs, errors.New("jira_settings.defaults.issue_type is required"))
	}
	if analystHTTP && p.Network.AnalystEndpoint == "" {
		errs = append(errs, errors.New("network.ai_analyst_endpoint is required for the http analyst"))
	}

	return errors.Join(errs...)
}

// Location returns the operating timezone. Validate must have passed.
func (p *Policy) Location() *time.Location {
	loc, err := time.LoadLocation(p.System.OperatingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Knowledge returns the contents of the optional knowledge file fed to the
// claude analyst as organisation policy.
func (p *Policy) Knowledge() (string, error) {
	if p.System.KnowledgeFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(p.System.KnowledgeFile)
	if err != nil {
		return "", fmt.Errorf("read knowledge file: %w", err)
	}
	return string(b), nil
}
