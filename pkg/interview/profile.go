// Package interview runs interview sessions: it resolves profiles, opens
// the speech media of each session and owns the engines.
package interview

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-interview/pkg/engine"
	"github.com/teslashibe/go-interview/pkg/policy"
	"github.com/teslashibe/go-interview/pkg/render"
)

// ErrProfileNotFound is returned for an unknown profile id.
var ErrProfileNotFound = errors.New("interview: profile not found")

// Profile is a reusable interview definition loaded from YAML:
//
//	id: backend-senior
//	title: Senior Backend Engineer
//	role: Backend Engineer
//	level: senior
//	type: technical
//	tech_stack: [Go, PostgreSQL]
//	questions:
//	  - Walk me through a service you designed.
//	greeting: "Hi {{name}}, thanks for joining the {{role}} interview."
//	max_human_turns: 8
//	silence_threshold: 2.5s
type Profile struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`

	Context policy.Context `yaml:",inline" json:"context"`

	Greeting         string          `yaml:"greeting" json:"greeting,omitempty"`
	MaxHumanTurns    int             `yaml:"max_human_turns" json:"maxHumanTurns,omitempty"`
	SilenceThreshold time.Duration   `yaml:"silence_threshold" json:"silenceThreshold,omitempty"`
	Prosody          *render.Prosody `yaml:"prosody" json:"prosody,omitempty"`
}

// Validate checks required fields.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("profile id is required")
	}
	if strings.TrimSpace(p.Context.Role) == "" {
		return fmt.Errorf("profile %s: role is required", p.ID)
	}
	if p.MaxHumanTurns < 0 {
		return fmt.Errorf("profile %s: max_human_turns cannot be negative", p.ID)
	}
	if p.SilenceThreshold < 0 {
		return fmt.Errorf("profile %s: silence_threshold cannot be negative", p.ID)
	}
	return nil
}

// EngineOptions returns the engine settings the profile overrides.
func (p *Profile) EngineOptions() []engine.Option {
	var opts []engine.Option
	if p.Greeting != "" {
		opts = append(opts, engine.WithGreeting(p.Greeting))
	}
	if p.MaxHumanTurns > 0 {
		opts = append(opts, engine.WithMaxHumanTurns(p.MaxHumanTurns))
	}
	if p.SilenceThreshold > 0 {
		opts = append(opts, engine.WithSilenceThreshold(p.SilenceThreshold))
	}
	if p.Prosody != nil {
		opts = append(opts, engine.WithProsody(p.Prosody.Normalize()))
	}
	return opts
}

// LoadProfile reads one profile file. The id defaults to the file name.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Title == "" {
		p.Title = p.Context.Role
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Profiles is a set of profiles keyed by id.
type Profiles struct {
	byID map[string]*Profile
}

// NewProfiles builds a set, rejecting duplicate ids.
func NewProfiles(profiles ...*Profile) (*Profiles, error) {
	set := &Profiles{byID: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		set.byID[p.ID] = p
	}
	return set, nil
}

// LoadProfiles reads every *.yaml and *.yml file in dir. A missing
// directory yields an empty set.
func LoadProfiles(dir string) (*Profiles, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return NewProfiles()
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var profiles []*Profile
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		p, err := LoadProfile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return NewProfiles(profiles...)
}

// Get returns the profile with id.
func (s *Profiles) Get(id string) (*Profile, error) {
	if s != nil {
		if p, ok := s.byID[id]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, id)
}

// List returns all profiles sorted by id.
func (s *Profiles) List() []*Profile {
	if s == nil {
		return nil
	}
	out := make([]*Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of profiles.
func (s *Profiles) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byID)
}
