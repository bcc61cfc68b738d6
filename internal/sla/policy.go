package sla

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/facilityops/facility-service/internal/domain"
)

// CategoryPolicy overrides thresholds and names the skills a category requires.
type CategoryPolicy struct {
	Skills     []string                                `yaml:"skills"`
	Thresholds map[domain.TicketPriority]time.Duration `yaml:"thresholds"`
}

// Policy maps (priority, category) to breach thresholds and categories to skills.
type Policy struct {
	Defaults   map[domain.TicketPriority]time.Duration `yaml:"default_thresholds"`
	Categories map[string]CategoryPolicy               `yaml:"categories"`
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Defaults: map[domain.TicketPriority]time.Duration{
			domain.TicketPriorityCritical: time.Hour,
			domain.TicketPriorityHigh:     4 * time.Hour,
			domain.TicketPriorityMedium:   24 * time.Hour,
			domain.TicketPriorityLow:      72 * time.Hour,
		},
		Categories: map[string]CategoryPolicy{},
	}
}

// LoadPolicy reads a YAML policy file layered over the defaults. An empty path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read sla policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes YAML policy bytes layered over the defaults.
func ParsePolicy(data []byte) (Policy, error) {
	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Policy{}, fmt.Errorf("decode sla policy: %w", err)
	}

	policy := DefaultPolicy()
	for priority, d := range file.Defaults {
		if err := validateThreshold(priority, d); err != nil {
			return Policy{}, err
		}
		policy.Defaults[priority] = d
	}
	for name, cat := range file.Categories {
		for priority, d := range cat.Thresholds {
			if err := validateThreshold(priority, d); err != nil {
				return Policy{}, fmt.Errorf("category %s: %w", name, err)
			}
		}
		skills := make([]string, 0, len(cat.Skills))
		for _, s := range cat.Skills {
			if s = normalize(s); s != "" {
				skills = append(skills, s)
			}
		}
		cat.Skills = skills
		policy.Categories[normalize(name)] = cat
	}
	return policy, nil
}

func validateThreshold(priority domain.TicketPriority, d time.Duration) error {
	if !priority.Valid() {
		return fmt.Errorf("unknown priority %q", priority)
	}
	if d <= 0 {
		return fmt.Errorf("threshold for %s must be positive", priority)
	}
	return nil
}

// Threshold returns the breach threshold for a priority within a category.
func (p Policy) Threshold(priority domain.TicketPriority, category string) time.Duration {
	if cat, ok := p.Categories[normalize(category)]; ok {
		if d, ok := cat.Thresholds[priority]; ok {
			return d
		}
	}
	if d, ok := p.Defaults[priority]; ok {
		return d
	}
	return p.Defaults[domain.TicketPriorityMedium]
}

// RequiredSkills returns the skills that qualify a resolver for category.
// Unlisted categories require a skill named after the category itself.
func (p Policy) RequiredSkills(category string) []string {
	key := normalize(category)
	if cat, ok := p.Categories[key]; ok && len(cat.Skills) > 0 {
		return cat.Skills
	}
	return []string{key}
}

// Breached reports whether the ticket's service time exceeds its threshold.
// Resolved and closed tickets never breach; a paused ticket excludes its open pause window.
func (p Policy) Breached(t *domain.Ticket, now time.Time) bool {
	if t.Status.Done() {
		return false
	}
	return ServiceTime(t, now) > p.Threshold(t.Priority, t.Category)
}

// Remaining returns time left before breach; negative once breached.
func (p Policy) Remaining(t *domain.Ticket, now time.Time) time.Duration {
	return p.Threshold(t.Priority, t.Category) - ServiceTime(t, now)
}

// CategoryNames lists configured categories in sorted order.
func (p Policy) CategoryNames() []string {
	names := make([]string, 0, len(p.Categories))
	for name := range p.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
