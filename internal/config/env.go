package config

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

const (
	keyDelim          = "."
	teamKeyPrefix     = "TEAM_"
	teamRepoSuffix    = "_REPO"
	teamMembersSuffix = "_MEMBERS"
	envTeamsPath      = "env_team"
)

type envKind int

const (
	envString envKind = iota
	envList
	envInt64
	envBool
	envDuration
)

type envKey struct {
	path string
	kind envKind
}

// envKeys maps environment variables onto rawConfig yaml paths.
var envKeys = map[string]envKey{
	"LOG_LEVEL":       {path: "log_level"},
	"GIT_PROVIDER":    {path: "git.provider"},
	"AUTHOR_DISPLAY":  {path: "git.author_display"},
	"COLLECTION_MODE": {path: "git.collection_mode"},

	"GITLAB_DOMAIN": {path: "gitlab.domain"},
	"GITLAB_TOKEN":  {path: "gitlab.token"},

	"GITHUB_API_BASE_URL":     {path: "github.api_base_url"},
	"GITHUB_TOKEN":            {path: "github.token"},
	"GITHUB_PRIVATE_KEY_PATH": {path: "github.private_key_path"},
	"GITHUB_APP_ID":           {path: "github.app_id", kind: envInt64},
	"GITHUB_INSTALLATION_ID":  {path: "github.installation_id", kind: envInt64},

	"JIRA_DOMAIN":         {path: "jira.domain"},
	"JIRA_EMAIL":          {path: "jira.email"},
	"JIRA_API_TOKEN":      {path: "jira.api_token"},
	"JIRA_PROJECT_PREFIX": {path: "jira.project_prefix"},
	"JIRA_PROJECT_KEYS":   {path: "jira.project_keys", kind: envList},
	"JIRA_STATUSES":       {path: "jira.statuses", kind: envList},

	"REPOSITORIES":     {path: "repositories", kind: envList},
	"TEAM_IDS":         {path: "merge.team_ids", kind: envList},
	"REPO_PREFIX":      {path: "merge.repo_prefix"},
	"REPO_PATH_PREFIX": {path: "merge.repo_path_prefix"},

	"TARGET_DATE":     {path: "window.target_date"},
	"WINDOW_LOOKBACK": {path: "window.lookback", kind: envDuration},

	"GIT_REPORT_DIR":           {path: "output.git_report_dir"},
	"GIT_REPORT_FILENAME":      {path: "output.git_report_filename"},
	"GIT_TEAM_REPORT_DIR":      {path: "output.team_report_dir"},
	"GIT_TEAM_REPORT_FILENAME": {path: "output.team_report_filename"},
	"JIRA_REPORT_DIR":          {path: "output.jira_report_dir"},
	"JIRA_REPORT_FILENAME":     {path: "output.jira_report_filename"},
	"DAILY_REPORT_DIR":         {path: "output.daily_report_dir"},
	"DAILY_REPORT_FILENAME":    {path: "output.daily_report_filename"},
	"DAILY_REPORT_HTML":        {path: "output.html", kind: envBool},

	"METRICS_TEXTFILE_PATH": {path: "metrics.textfile_path"},
	"OTEL_ENABLED":          {path: "telemetry.otel_enabled", kind: envBool},
	"OTEL_TRACE_MODE":       {path: "telemetry.otel_trace_mode"},
}

// applyEnv loads environ through koanf and unmarshals it over raw. Only
// variables that are set and non-empty override file values. The returned
// instance also holds the TEAM_<ID>_* pairs under envTeamsPath.
func applyEnv(raw *rawConfig, environ []string) (*koanf.Koanf, error) {
	var errs []string
	k := koanf.New(keyDelim)
	provider := env.Provider(keyDelim, env.Opt{
		EnvironFunc: func() []string { return environ },
		TransformFunc: func(key, value string) (string, any) {
			path, parsed, err := transformEnv(key, value)
			if err != nil {
				errs = append(errs, err.Error())
				return "", nil
			}
			return path, parsed
		},
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if len(errs) > 0 {
		slices.Sort(errs)
		return nil, &Error{Problems: errs}
	}

	if err := k.UnmarshalWithConf("", raw, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, &Error{Problems: []string{"environment: " + err.Error()}}
	}
	return k, nil
}

// transformEnv maps one variable to its koanf path and typed value. An empty
// path drops the variable.
func transformEnv(key, value string) (string, any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil, nil
	}

	spec, ok := envKeys[key]
	if !ok {
		return teamPath(key), value, nil
	}

	switch spec.kind {
	case envList:
		return spec.path, splitList(value), nil
	case envInt64:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", nil, fmt.Errorf("%s must be an integer", key)
		}
		return spec.path, parsed, nil
	case envBool:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return "", nil, fmt.Errorf("%s must be a boolean", key)
		}
		return spec.path, parsed, nil
	case envDuration:
		parsed, err := parseFlexibleDuration(value)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", key, err)
		}
		return spec.path, duration{Duration: parsed}, nil
	default:
		return spec.path, value, nil
	}
}

// teamPath maps TEAM_<ID>_REPO and TEAM_<ID>_MEMBERS to
// env_team.<ID>.repo and env_team.<ID>.members.
func teamPath(key string) string {
	if !strings.HasPrefix(key, teamKeyPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(key, teamKeyPrefix)
	for suffix, field := range map[string]string{teamRepoSuffix: "repo", teamMembersSuffix: "members"} {
		id, ok := strings.CutSuffix(rest, suffix)
		if ok && id != "" && !strings.Contains(id, keyDelim) {
			return strings.Join([]string{envTeamsPath, id, field}, keyDelim)
		}
	}
	return ""
}

func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// mergeEnvTeams reads the TEAM_<ID>_REPO / TEAM_<ID>_MEMBERS pairs loaded by
// applyEnv. Env teams replace file teams with the same id and are appended in
// id order otherwise. A team whose member list is not valid JSON is skipped
// with a warning.
func mergeEnvTeams(teams []TeamConfig, k *koanf.Koanf, warnings []string) ([]TeamConfig, []string) {
	if k == nil {
		return teams, warnings
	}
	ids := k.MapKeys(envTeamsPath)
	slices.Sort(ids)

	for _, id := range ids {
		base := envTeamsPath + keyDelim + id + keyDelim
		if !k.Exists(base+"repo") || !k.Exists(base+"members") {
			continue
		}
		var members []MemberConfig
		if err := json.Unmarshal([]byte(k.String(base+"members")), &members); err != nil {
			warnings = append(warnings, fmt.Sprintf("team %s: parse members: %v", id, err))
			continue
		}

		team := TeamConfig{
			ID:      id,
			Repo:    k.String(base + "repo"),
			Members: members,
		}
		replaced := false
		for i := range teams {
			if teams[i].ID == id {
				teams[i] = team
				replaced = true
				break
			}
		}
		if !replaced {
			teams = append(teams, team)
		}
	}
	return teams, warnings
}
