// Package shard splits the supported roles into named groups that are
// scraped by separate processes.
package shard

import (
	"encoding/json"
	"fmt"
	"strings"

	"jobmate/aggregator-service/internal/model"
)

// Shard is a named group of roles run by one `run` process.
type Shard struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// Experiences are the levels every role is searched for.
var Experiences = []string{
	model.ExperienceEntry.Label(),
	model.ExperienceMid.Label(),
	model.ExperienceSenior.Label(),
}

// DefaultRoles is used by `run` and `enqueue` when ROLES is not set.
var DefaultRoles = []string{
	"Frontend Developer",
	"Backend Developer",
	"Full Stack Developer",
	"DevOps Engineer",
	"Data Scientist",
	"Product Manager",
}

// Builtin is the shard table used by the launcher.
var Builtin = []Shard{
	{Name: "core-engineering", Roles: []string{
		"Backend Engineer", "Frontend Engineer", "Full Stack Engineer", "Mobile Engineer",
		"Software Engineer", "Platform Engineer", "Systems Engineer", "Embedded Systems Engineer", "UI UX",
	}},
	{Name: "cloud-devops", Roles: []string{
		"Cloud Engineer", "Cloud Architect", "DevOps Engineer", "Site Reliability Engineer (SRE)",
		"Infrastructure Engineer", "Cloud Strategy Consultant", "Network Cloud Engineer",
	}},
	{Name: "security-risk", Roles: []string{
		"Security Engineer", "Cloud Security Engineer", "Application Security Engineer",
		"Network Security Engineer", "Cyber Security Analyst", "GRC / Compliance Engineer",
		"IT Auditor", "FedRAMP / ATO Engineer", "Technology Risk Manager",
	}},
	{Name: "data-ai", Roles: []string{
		"Data Engineer", "Data Scientist", "Analytics Engineer", "Business Intelligence Engineer",
		"Machine Learning Engineer", "AI Engineer", "Financial Analyst",
	}},
	{Name: "qa-testing", Roles: []string{
		"QA Engineer", "Automation Test Engineer", "Performance Test Engineer",
		"Security Test Engineer", "Test Lead / QA Lead",
	}},
	{Name: "it-operations", Roles: []string{
		"IT Infrastructure Engineer", "IT Operations Engineer", "Linux / Unix Administrator",
		"Monitoring / SIEM Engineer", "Observability Engineer", "Release / Configuration Manager",
		"Network Engineer",
	}},
	{Name: "enterprise-apps", Roles: []string{
		"SAP Analyst", "ERP Consultant", "CRM Consultant", "ServiceNow Developer / Admin",
		"IT Asset / ITOM Engineer", "Workday Analyst", "Salesforce Developer",
	}},
	{Name: "architecture-leadership", Roles: []string{
		"Enterprise Architect", "Solutions Architect", "IT Manager", "CTO / CIO",
		"Product Manager", "Technical Product Manager", "Project Manager", "Program Manager",
	}},
	{Name: "emerging-tech", Roles: []string{
		"Blockchain Engineer", "IoT Engineer", "Robotics Engineer", "AR / VR Engineer",
		"AML KYC", "Business Analyst",
	}},
}

// Select returns the shards named in names, in table order. An empty
// names selects every shard.
func Select(table []Shard, names []string) ([]Shard, error) {
	if len(names) == 0 {
		return table, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []Shard
	for _, s := range table {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		return nil, fmt.Errorf("unknown shard(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// ParseRoles reads a ROLES value: a JSON array of strings or a comma
// separated list. Blank entries are dropped.
func ParseRoles(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var raw []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, fmt.Errorf("parse ROLES: %w", err)
		}
	} else {
		raw = strings.Split(s, ",")
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

// EncodeRoles is the inverse of ParseRoles.
func EncodeRoles(roles []string) string {
	b, _ := json.Marshal(roles)
	return string(b)
}

// Requests expands roles × experiences into search requests.
func Requests(roles, experiences []string, location string) []model.SearchRequest {
	out := make([]model.SearchRequest, 0, len(roles)*len(experiences))
	for _, role := range roles {
		for _, exp := range experiences {
			out = append(out, model.SearchRequest{Role: role, Experience: exp, Location: location})
		}
	}
	return out
}
