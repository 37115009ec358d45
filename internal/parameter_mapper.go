package internal

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// MappingSource selects the live object a placeholder reads from.
type MappingSource string

const (
	SourceProject         MappingSource = "Project"
	SourceProjectSettings MappingSource = "ProjectSettings"
	SourceUser            MappingSource = "User"
	SourceCodeTemplate    MappingSource = "CodeTemplate"
	SourceDirectories     MappingSource = "Directories"
)

// ParameterMapping binds a placeholder token to an attribute of a source.
type ParameterMapping struct {
	Source    MappingSource
	Attribute string
}

// DefaultParameterMappings are the tokens template authors may use.
var DefaultParameterMappings = map[string]ParameterMapping{
	"project_name":           {SourceProject, "name"},
	"project_slug":           {SourceProject, "slug"},
	"project_description":    {SourceProject, "description"},
	"author_name":            {SourceUser, "username"},
	"author_email":           {SourceUser, "email"},
	"project_domain_name":    {SourceProjectSettings, "domain_name"},
	"project_admin_username": {SourceProjectSettings, "admin_name"},
	"project_admin_password": {SourceProjectSettings, "admin_password"},
	"project_docker_root":    {SourceProjectSettings, "docker_root"},
	"code_template_path":     {SourceCodeTemplate, "path"},
	"output_dir":             {SourceDirectories, "output_dir"},
	"cookiecutters_dir":      {SourceDirectories, "cookiecutters_dir"},
	"replay_dir":             {SourceDirectories, "replay_dir"},
}

// MappingContext holds the live objects of one generation run.
type MappingContext struct {
	Project      *lowcoder.Project
	Settings     *lowcoder.ProjectSettings
	User         *lowcoder.User
	CodeTemplate *lowcoder.CodeTemplate
	Directories  Directories
}

type accessor func(c *MappingContext) string

var mappingAccessors = map[MappingSource]map[string]accessor{
	SourceProject: {
		"name":        func(c *MappingContext) string { return c.Project.Name },
		"slug":        func(c *MappingContext) string { return c.Project.SlugName() },
		"description": func(c *MappingContext) string { return c.Project.Description },
	},
	SourceProjectSettings: {
		"domain_name":    func(c *MappingContext) string { return c.Settings.DomainName },
		"admin_name":     func(c *MappingContext) string { return c.Settings.AdminName },
		"admin_password": func(c *MappingContext) string { return c.Settings.AdminPassword },
		"docker_root":    func(c *MappingContext) string { return c.Settings.DockerRoot },
	},
	SourceUser: {
		"username": func(c *MappingContext) string { return c.User.Username },
		"email":    func(c *MappingContext) string { return c.User.Email },
	},
	SourceCodeTemplate: {
		"path": func(c *MappingContext) string { return c.CodeTemplate.Path },
	},
	SourceDirectories: {
		"output_dir":        func(c *MappingContext) string { return c.Directories.OutputDir() },
		"cookiecutters_dir": func(c *MappingContext) string { return c.Directories.CookiecuttersDir() },
		"replay_dir":        func(c *MappingContext) string { return c.Directories.ReplayDir() },
	},
}

var placeholderPattern = regexp.MustCompile(`(?s)^(.*?)\{\{([^{}]+)\}\}(.*)$`)

// TemplateParameterMapper expands {{token}} placeholders in code template
// parameters against the objects of a MappingContext.
type TemplateParameterMapper struct {
	ctx      *MappingContext
	bound    map[string]accessor
	notices  lowcoder.Notices
	template string
}

// NewTemplateParameterMapper resolves every mapping up front. A mapping to
// an unknown source or attribute, or to a source missing from ctx, fails.
func NewTemplateParameterMapper(ctx *MappingContext, mappings map[string]ParameterMapping) (*TemplateParameterMapper, error) {
	if mappings == nil {
		mappings = DefaultParameterMappings
	}
	tokens := make([]string, 0, len(mappings))
	for token := range mappings {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	bound := make(map[string]accessor, len(mappings))
	for _, token := range tokens {
		m := mappings[token]
		fn, ok := mappingAccessors[m.Source][m.Attribute]
		if !ok || !ctx.has(m.Source) {
			return nil, lowcoder.NewLowcoderError(lowcoder.ErrorTypeValidation, lowcoder.ErrCodeInvalidMapping,
				fmt.Sprintf("invalid mapping for token %q: %s.%s", token, m.Source, m.Attribute)).
				WithDetail("token", token)
		}
		bound[token] = fn
	}

	name := ""
	if ctx.CodeTemplate != nil {
		name = ctx.CodeTemplate.Name
	}
	return &TemplateParameterMapper{ctx: ctx, bound: bound, template: name}, nil
}

func (c *MappingContext) has(source MappingSource) bool {
	switch source {
	case SourceProject:
		return c.Project != nil
	case SourceProjectSettings:
		return c.Settings != nil
	case SourceUser:
		return c.User != nil
	case SourceCodeTemplate:
		return c.CodeTemplate != nil
	case SourceDirectories:
		return true
	}
	return false
}

// Expand returns the parameter value with its placeholder replaced. Values
// without a placeholder and unknown tokens come back unchanged; a nil value
// stays nil.
func (m *TemplateParameterMapper) Expand(param lowcoder.CodeTemplateParameter) *string {
	if param.Value == nil {
		return nil
	}
	raw := *param.Value
	match := placeholderPattern.FindStringSubmatch(raw)
	if match == nil {
		return &raw
	}

	prefix, token, suffix := match[1], match[2], match[3]
	fn, ok := m.bound[token]
	if !ok {
		zap.S().Warnw("unmapped template placeholder", "template", m.template, "parameter", param.Name, "token", token)
		m.notices.Warnf("No mapping found for Code Template: %s, Parameter: %s Value: %s", m.template, param.Name, raw)
		return &raw
	}

	expanded := prefix + fn(m.ctx) + suffix
	return &expanded
}

// ExpandAll builds the flat context handed to the template expander.
// Parameters without a value are left out.
func (m *TemplateParameterMapper) ExpandAll(params []lowcoder.CodeTemplateParameter) map[string]any {
	out := make(map[string]any, len(params))
	for _, p := range params {
		if v := m.Expand(p); v != nil {
			out[p.Name] = *v
		}
	}
	return out
}

// Notices returns the warnings collected so far.
func (m *TemplateParameterMapper) Notices() lowcoder.Notices {
	return m.notices
}
