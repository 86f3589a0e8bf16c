package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// rosterFile is the on-disk layout:
//
//	departments:
//	  head:
//	    - chat_id: 1001
//	      nickname: "@boss"
type rosterFile struct {
	Departments map[string][]types.Member `yaml:"departments"`
}

// LoadRoster reads the department roster from a YAML file.
func LoadRoster(path string) (map[types.Department][]types.Member, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(raw)
}

// ParseRoster decodes and checks a roster document. Every department must
// be present with at least one member, and chat ids must be non-zero.
func ParseRoster(raw []byte) (map[types.Department][]types.Member, error) {
	var f rosterFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	out := make(map[types.Department][]types.Member, len(f.Departments))
	for name, members := range f.Departments {
		dept, err := types.ParseDepartment(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, fmt.Errorf("roster: %w", err)
		}
		for i, m := range members {
			if m.ChatID == 0 {
				return nil, fmt.Errorf("roster: %s member %d has no chat_id", dept, i)
			}
		}
		out[dept] = members
	}

	var errs []error
	for _, dept := range types.Departments {
		if len(out[dept]) == 0 {
			errs = append(errs, fmt.Errorf("roster: department %s has no members", dept))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
