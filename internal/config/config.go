package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

var (
	validLogLevels       = []string{"debug", "info", "warn", "error"}
	validProviders       = []string{ProviderGitLab, ProviderGitHub}
	validAuthorModes     = []string{AuthorDisplayRaw, AuthorDisplayLookup}
	validCollectionModes = []string{CollectionBranches, CollectionAll}
)

const (
	// ProviderGitLab selects the GitLab REST v4 commit source.
	ProviderGitLab = "gitlab"
	// ProviderGitHub selects the GitHub REST commit source.
	ProviderGitHub = "github"

	// AuthorDisplayRaw renders commit author names unchanged.
	AuthorDisplayRaw = "raw"
	// AuthorDisplayLookup resolves author handles through the user directory.
	AuthorDisplayLookup = "lookup"

	// CollectionBranches scans every branch of a project sequentially.
	CollectionBranches = "branches"
	// CollectionAll uses the provider's whole-project listing.
	CollectionAll = "all"
)

// Stage names one independently invocable pipeline stage.
type Stage string

const (
	// StageTeamReport builds per-team Git reports over the window.
	StageTeamReport Stage = "team-report"
	// StageRepoSummary builds the per-repository window summary.
	StageRepoSummary Stage = "repo-summary"
	// StageGitDaily builds the daily Git document.
	StageGitDaily Stage = "git-daily"
	// StageIssueReport builds the daily issue-tracker document.
	StageIssueReport Stage = "issue-report"
	// StageMerge merges previously written documents.
	StageMerge Stage = "merge"
	// StageDaily runs git-daily, issue-report and merge in one process.
	StageDaily Stage = "daily"
	// StageCommitInfo dumps one commit's detail.
	StageCommitInfo Stage = "commit-info"
	// StageIssueInfo dumps one issue's detail.
	StageIssueInfo Stage = "issue-info"
)

// UsesGit reports whether the stage reads from the Git host.
func (s Stage) UsesGit() bool {
	switch s {
	case StageTeamReport, StageRepoSummary, StageGitDaily, StageDaily, StageCommitInfo:
		return true
	default:
		return false
	}
}

// UsesIssues reports whether the stage reads from the issue tracker.
func (s Stage) UsesIssues() bool {
	switch s {
	case StageIssueReport, StageDaily, StageIssueInfo:
		return true
	default:
		return false
	}
}

// Error reports missing or invalid configuration. It is fatal and is raised
// before any network call.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// IsConfigError reports whether err is or wraps a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

// Config is the root application configuration.
type Config struct {
	LogLevel     string
	Git          GitConfig
	GitLab       GitLabConfig
	GitHub       GitHubConfig
	Jira         JiraConfig
	Teams        []TeamConfig
	Repositories []string
	Merge        MergeConfig
	Window       WindowConfig
	Output       OutputConfig
	Metrics      MetricsConfig
	Telemetry    TelemetryConfig

	// Warnings collects non-fatal problems found while loading, such as a
	// team whose member list could not be parsed.
	Warnings []string
}

// GitConfig selects how commits are collected and rendered.
type GitConfig struct {
	Provider        string
	AuthorDisplay   string
	CollectionMode  string
	PageSize        int
	RefsConcurrency int
}

// GitLabConfig configures GitLab API interactions.
type GitLabConfig struct {
	Domain         string
	Token          string
	RequestTimeout time.Duration
	Retry          RetryConfig
}

// APIBaseURL returns the REST v4 root for the configured domain.
func (c GitLabConfig) APIBaseURL() string {
	domain := strings.TrimSpace(c.Domain)
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimSuffix(domain, "/") + "/api/v4/"
	}
	return "https://" + domain + "/api/v4/"
}

// GitHubConfig configures the GitHub commit source.
type GitHubConfig struct {
	APIBaseURL     string
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
	RequestTimeout time.Duration
}

// RetryConfig configures request retries. One attempt means no retry.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// JiraConfig configures the issue tracker.
type JiraConfig struct {
	Domain        string
	Email         string
	APIToken      string
	ProjectPrefix string
	ProjectKeys   []string
	Statuses      []string
	PageSize      int
}

// Keys returns the configured project keys, deriving them from the merge
// team ids and the project prefix when none are listed explicitly.
func (c JiraConfig) Keys(teamIDs []string) []string {
	if len(c.ProjectKeys) > 0 {
		return slices.Clone(c.ProjectKeys)
	}
	keys := make([]string, 0, len(teamIDs))
	for _, id := range teamIDs {
		keys = append(keys, c.ProjectPrefix+id)
	}
	return keys
}

// TeamConfig is one team and its repository.
type TeamConfig struct {
	ID      string         `yaml:"id"`
	Repo    string         `yaml:"repo"`
	Members []MemberConfig `yaml:"members"`
}

// MemberConfig is one configured team member.
type MemberConfig struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// MergeConfig configures cross-source merging.
type MergeConfig struct {
	TeamIDs        []string
	RepoPrefix     string
	RepoPathPrefix string
}

// WindowConfig configures the collection window.
type WindowConfig struct {
	Lookback   time.Duration
	TargetDate string
}

// Resolve returns the window [start, end] as UTC midnights. The end is the
// target date when set, otherwise the UTC date of now.
func (w WindowConfig) Resolve(now time.Time) (time.Time, time.Time, error) {
	end := now.UTC().Truncate(24 * time.Hour)
	if strings.TrimSpace(w.TargetDate) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(w.TargetDate))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse target date %q: %w", w.TargetDate, err)
		}
		end = parsed.UTC()
	}
	start := end.Add(-w.Lookback).Truncate(24 * time.Hour)
	return start, end, nil
}

// OutputConfig configures report file placement.
type OutputConfig struct {
	GitReportDir        string
	GitReportFilename   string
	TeamReportDir       string
	TeamReportFilename  string
	JiraReportDir       string
	JiraReportFilename  string
	DailyReportDir      string
	DailyReportFilename string
	HTML                bool
}

// MetricsConfig configures the end-of-run metrics textfile.
type MetricsConfig struct {
	TextfilePath string
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// Load reads configuration from YAML, overlays the environment and validates
// the generic fields. A nil reader starts from an empty document.
func Load(reader io.Reader, environ []string) (*Config, error) {
	var raw rawConfig
	if reader != nil {
		decoder := yaml.NewDecoder(reader)
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	envLayer, err := applyEnv(&raw, environ)
	if err != nil {
		return nil, err
	}
	cfg := raw.toConfig()
	cfg.Teams, cfg.Warnings = mergeEnvTeams(cfg.Teams, envLayer, cfg.Warnings)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates fields shared by every stage.
func (c *Config) Validate() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, "log_level must be one of debug|info|warn|error")
	}
	if !slices.Contains(validProviders, c.Git.Provider) {
		errs = append(errs, "git.provider must be gitlab or github")
	}
	if !slices.Contains(validAuthorModes, c.Git.AuthorDisplay) {
		errs = append(errs, "git.author_display must be raw or lookup")
	}
	if !slices.Contains(validCollectionModes, c.Git.CollectionMode) {
		errs = append(errs, "git.collection_mode must be branches or all")
	}
	if c.Git.PageSize <= 0 || c.Git.PageSize > 100 {
		errs = append(errs, "git.page_size must be between 1 and 100")
	}
	if c.Window.Lookback < 0 {
		errs = append(errs, "window.lookback must be >= 0")
	}
	if strings.TrimSpace(c.Window.TargetDate) != "" {
		if _, err := time.Parse(dateLayout, strings.TrimSpace(c.Window.TargetDate)); err != nil {
			errs = append(errs, "window.target_date must be YYYY-MM-DD")
		}
	}

	seenTeams := make(map[string]struct{}, len(c.Teams))
	for i, team := range c.Teams {
		prefix := fmt.Sprintf("teams[%d]", i)
		if team.Repo == "" {
			errs = append(errs, prefix+".repo is required")
		}
		if _, ok := seenTeams[team.Repo]; ok && team.Repo != "" {
			errs = append(errs, "teams contains duplicate repo: "+team.Repo)
		}
		seenTeams[team.Repo] = struct{}{}
		for j, member := range team.Members {
			if strings.TrimSpace(member.ID) == "" {
				errs = append(errs, fmt.Sprintf("%s.members[%d].id is required", prefix, j))
			}
		}
	}

	if len(errs) > 0 {
		return &Error{Problems: errs}
	}
	return nil
}

// ValidateFor checks the fields one stage needs before it makes any call.
func (c *Config) ValidateFor(stage Stage) error {
	var errs []string

	if stage.UsesGit() {
		errs = append(errs, c.gitProblems()...)
	}
	switch stage {
	case StageTeamReport:
		if len(c.activeTeams()) == 0 {
			errs = append(errs, "no team with members is configured (TEAM_<ID>_REPO / TEAM_<ID>_MEMBERS)")
		}
	case StageRepoSummary, StageGitDaily, StageDaily:
		if len(c.Repositories) == 0 {
			errs = append(errs, "repositories must not be empty (REPOSITORIES)")
		}
	}
	if stage.UsesIssues() {
		if c.Jira.Domain == "" {
			errs = append(errs, "jira.domain is required (JIRA_DOMAIN)")
		}
		if c.Jira.Email == "" {
			errs = append(errs, "jira.email is required (JIRA_EMAIL)")
		}
		if c.Jira.APIToken == "" {
			errs = append(errs, "jira.api_token is required (JIRA_API_TOKEN)")
		}
	}
	if stage == StageIssueReport || stage == StageDaily {
		if len(c.Jira.Keys(c.Merge.TeamIDs)) == 0 {
			errs = append(errs, "jira.project_keys or merge.team_ids must not be empty")
		}
	}
	if (stage == StageMerge || stage == StageDaily) && len(c.Merge.TeamIDs) == 0 {
		errs = append(errs, "merge.team_ids must not be empty (TEAM_IDS)")
	}

	if len(errs) > 0 {
		return &Error{Problems: errs}
	}
	return nil
}

func (c *Config) gitProblems() []string {
	var errs []string
	switch c.Git.Provider {
	case ProviderGitLab:
		if c.GitLab.Domain == "" {
			errs = append(errs, "gitlab.domain is required (GITLAB_DOMAIN)")
		}
		if c.GitLab.Token == "" {
			errs = append(errs, "gitlab.token is required (GITLAB_TOKEN)")
		}
	case ProviderGitHub:
		if c.GitHub.Token == "" && c.GitHub.AppID <= 0 {
			errs = append(errs, "github.token or github.app_id is required")
		}
		if c.GitHub.AppID > 0 {
			if c.GitHub.InstallationID <= 0 {
				errs = append(errs, "github.installation_id must be > 0")
			}
			if c.GitHub.PrivateKeyPath == "" {
				errs = append(errs, "github.private_key_path is required")
			}
		}
	}
	return errs
}

// ActiveTeams returns the teams that take part in a run: configured teams
// with at least one member.
func (c *Config) ActiveTeams() []TeamConfig {
	return c.activeTeams()
}

func (c *Config) activeTeams() []TeamConfig {
	teams := make([]TeamConfig, 0, len(c.Teams))
	for _, team := range c.Teams {
		if len(team.Members) == 0 {
			continue
		}
		teams = append(teams, team)
	}
	return teams
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Git.Provider == "" {
		cfg.Git.Provider = ProviderGitLab
	}
	if cfg.Git.AuthorDisplay == "" {
		cfg.Git.AuthorDisplay = AuthorDisplayRaw
	}
	if cfg.Git.CollectionMode == "" {
		cfg.Git.CollectionMode = CollectionBranches
	}
	if cfg.Git.PageSize == 0 {
		cfg.Git.PageSize = 100
	}
	if cfg.Git.RefsConcurrency <= 0 {
		cfg.Git.RefsConcurrency = 8
	}
	if cfg.GitLab.Domain == "" {
		cfg.GitLab.Domain = "gitlab.com"
	}
	if cfg.GitLab.RequestTimeout == 0 {
		cfg.GitLab.RequestTimeout = 30 * time.Second
	}
	if cfg.GitLab.Retry.MaxAttempts <= 0 {
		cfg.GitLab.Retry.MaxAttempts = 1
	}
	if cfg.GitHub.RequestTimeout == 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.Jira.PageSize == 0 {
		cfg.Jira.PageSize = 50
	}
	if len(cfg.Merge.TeamIDs) == 0 {
		cfg.Merge.TeamIDs = []string{"E201", "E202", "E203", "E204", "E205", "E206", "E207"}
	}
	if cfg.Merge.RepoPrefix == "" {
		cfg.Merge.RepoPrefix = "S12P31"
	}
	if cfg.Merge.RepoPathPrefix == "" {
		cfg.Merge.RepoPathPrefix = "/s12-final/"
	}
	if cfg.Window.Lookback == 0 {
		cfg.Window.Lookback = 14 * 24 * time.Hour
	}
	setDefault(&cfg.Output.GitReportDir, "./daily-git")
	setDefault(&cfg.Output.GitReportFilename, "일일보고서용-Git")
	setDefault(&cfg.Output.TeamReportDir, "./daily-git")
	setDefault(&cfg.Output.TeamReportFilename, "2주간보고서용-Git")
	setDefault(&cfg.Output.JiraReportDir, "./daily-jira")
	setDefault(&cfg.Output.JiraReportFilename, "일일보고서용-Jira")
	setDefault(&cfg.Output.DailyReportDir, "./daily-report")
	setDefault(&cfg.Output.DailyReportFilename, "일일보고서")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

type rawConfig struct {
	LogLevel     string       `yaml:"log_level"`
	Git          rawGit       `yaml:"git"`
	GitLab       rawGitLab    `yaml:"gitlab"`
	GitHub       rawGitHub    `yaml:"github"`
	Jira         rawJira      `yaml:"jira"`
	Teams        []TeamConfig `yaml:"teams"`
	Repositories []string     `yaml:"repositories"`
	Merge        rawMerge     `yaml:"merge"`
	Window       rawWindow    `yaml:"window"`
	Output       rawOutput    `yaml:"output"`
	Metrics      rawMetrics   `yaml:"metrics"`
	Telemetry    rawTelemetry `yaml:"telemetry"`
}

type rawGit struct {
	Provider        string `yaml:"provider"`
	AuthorDisplay   string `yaml:"author_display"`
	CollectionMode  string `yaml:"collection_mode"`
	PageSize        int    `yaml:"page_size"`
	RefsConcurrency int    `yaml:"refs_concurrency"`
}

type rawGitLab struct {
	Domain         string   `yaml:"domain"`
	Token          string   `yaml:"token"`
	RequestTimeout duration `yaml:"request_timeout"`
	Retry          rawRetry `yaml:"retry"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawGitHub struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	Token          string   `yaml:"token"`
	AppID          int64    `yaml:"app_id"`
	InstallationID int64    `yaml:"installation_id"`
	PrivateKeyPath string   `yaml:"private_key_path"`
	RequestTimeout duration `yaml:"request_timeout"`
}

type rawJira struct {
	Domain        string   `yaml:"domain"`
	Email         string   `yaml:"email"`
	APIToken      string   `yaml:"api_token"`
	ProjectPrefix string   `yaml:"project_prefix"`
	ProjectKeys   []string `yaml:"project_keys"`
	Statuses      []string `yaml:"statuses"`
	PageSize      int      `yaml:"page_size"`
}

type rawMerge struct {
	TeamIDs        []string `yaml:"team_ids"`
	RepoPrefix     string   `yaml:"repo_prefix"`
	RepoPathPrefix string   `yaml:"repo_path_prefix"`
}

type rawWindow struct {
	Lookback   duration `yaml:"lookback"`
	TargetDate string   `yaml:"target_date"`
}

type rawOutput struct {
	GitReportDir        string `yaml:"git_report_dir"`
	GitReportFilename   string `yaml:"git_report_filename"`
	TeamReportDir       string `yaml:"team_report_dir"`
	TeamReportFilename  string `yaml:"team_report_filename"`
	JiraReportDir       string `yaml:"jira_report_dir"`
	JiraReportFilename  string `yaml:"jira_report_filename"`
	DailyReportDir      string `yaml:"daily_report_dir"`
	DailyReportFilename string `yaml:"daily_report_filename"`
	HTML                bool   `yaml:"html"`
}

type rawMetrics struct {
	TextfilePath string `yaml:"textfile_path"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

func (r rawConfig) toConfig() *Config {
	cfg := &Config{
		LogLevel: r.LogLevel,
		Git: GitConfig{
			Provider:        r.Git.Provider,
			AuthorDisplay:   r.Git.AuthorDisplay,
			CollectionMode:  r.Git.CollectionMode,
			PageSize:        r.Git.PageSize,
			RefsConcurrency: r.Git.RefsConcurrency,
		},
		GitLab: GitLabConfig{
			Domain:         r.GitLab.Domain,
			Token:          r.GitLab.Token,
			RequestTimeout: r.GitLab.RequestTimeout.Duration,
			Retry: RetryConfig{
				MaxAttempts:    r.GitLab.Retry.MaxAttempts,
				InitialBackoff: r.GitLab.Retry.InitialBackoff.Duration,
				MaxBackoff:     r.GitLab.Retry.MaxBackoff.Duration,
			},
		},
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			Token:          r.GitHub.Token,
			AppID:          r.GitHub.AppID,
			InstallationID: r.GitHub.InstallationID,
			PrivateKeyPath: r.GitHub.PrivateKeyPath,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
		},
		Jira: JiraConfig{
			Domain:        r.Jira.Domain,
			Email:         r.Jira.Email,
			APIToken:      r.Jira.APIToken,
			ProjectPrefix: r.Jira.ProjectPrefix,
			ProjectKeys:   r.Jira.ProjectKeys,
			Statuses:      r.Jira.Statuses,
			PageSize:      r.Jira.PageSize,
		},
		Teams:        make([]TeamConfig, 0, len(r.Teams)),
		Repositories: r.Repositories,
		Merge: MergeConfig{
			TeamIDs:        r.Merge.TeamIDs,
			RepoPrefix:     r.Merge.RepoPrefix,
			RepoPathPrefix: r.Merge.RepoPathPrefix,
		},
		Window: WindowConfig{
			Lookback:   r.Window.Lookback.Duration,
			TargetDate: r.Window.TargetDate,
		},
		Output: OutputConfig(r.Output),
		Metrics: MetricsConfig{
			TextfilePath: r.Metrics.TextfilePath,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
	}

	for _, team := range r.Teams {
		cfg.Teams = append(cfg.Teams, TeamConfig{
			ID:      team.ID,
			Repo:    team.Repo,
			Members: slices.Clone(team.Members),
		})
	}
	return cfg
}
