package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/facilityops/facility-service/internal/domain"
)

type staffFile struct {
	Staff []staffEntry `yaml:"staff"`
}

type staffEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	OrganizationID string   `yaml:"organization_id"`
	PropertyIDs    []string `yaml:"property_ids"`
	Skills         []string `yaml:"skills"`
	Active         *bool    `yaml:"active"`
}

// LoadStaffFile reads a YAML staff directory. Members are active unless stated otherwise.
func LoadStaffFile(path string, now time.Time) ([]domain.StaffMember, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read staff file: %w", err)
	}
	return ParseStaff(data, now)
}

// ParseStaff decodes staff directory YAML.
func ParseStaff(data []byte, now time.Time) ([]domain.StaffMember, error) {
	var file staffFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode staff file: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Staff))
	members := make([]domain.StaffMember, 0, len(file.Staff))
	for i, e := range file.Staff {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("staff entry %d: id required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("staff entry %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		role, err := domain.ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("staff entry %s: %w", id, err)
		}
		if role.Name() == domain.RoleTenant {
			return nil, fmt.Errorf("staff entry %s: tenants are not staff", id)
		}
		if strings.TrimSpace(e.OrganizationID) == "" {
			return nil, fmt.Errorf("staff entry %s: organization_id required", id)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		skills := make([]string, 0, len(e.Skills))
		for _, s := range e.Skills {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				skills = append(skills, s)
			}
		}
		members = append(members, domain.StaffMember{
			ID:             id,
			Name:           strings.TrimSpace(e.Name),
			Role:           role.Name(),
			OrganizationID: strings.TrimSpace(e.OrganizationID),
			PropertyIDs:    e.PropertyIDs,
			Skills:         skills,
			Active:         active,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return members, nil
}
