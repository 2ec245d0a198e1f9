// Package site holds the static portfolio content rendered by the page
// templates. The content ships inside the binary as YAML.
package site

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

// Sections are the anchors the page exposes, in scroll order.
var Sections = []string{"hero", "about", "skills", "projects", "contact"}

type NavItem struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type Link struct {
	Label  string `yaml:"label"`
	Target string `yaml:"target"`
}

type Social struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
	Icon  string `yaml:"icon"`
}

type Orb struct {
	Color    string `yaml:"color"`
	Size     int    `yaml:"size"`
	Position string `yaml:"position"`
	Delay    string `yaml:"delay"`
}

type Hero struct {
	Heading string `yaml:"heading"`
	Tagline string `yaml:"tagline"`
	CTA     []Link `yaml:"cta"`
	Orbs    []Orb  `yaml:"orbs"`
}

type Stat struct {
	Number string `yaml:"number"`
	Label  string `yaml:"label"`
}

type About struct {
	Paragraphs []string `yaml:"paragraphs"`
	Stats      []Stat   `yaml:"stats"`
}

type SkillOrb struct {
	Name     string `yaml:"name"`
	Color    string `yaml:"color"`
	Position string `yaml:"position"`
}

type SkillCategory struct {
	Title  string   `yaml:"title"`
	Color  string   `yaml:"color"`
	Skills []string `yaml:"skills"`
}

type Skills struct {
	Orbs       []SkillOrb      `yaml:"orbs"`
	Categories []SkillCategory `yaml:"categories"`
}

// PreviewTechCount is how many technologies a project card shows before
// collapsing the rest into "+N more".
const PreviewTechCount = 3

type Project struct {
	ID              int      `yaml:"id"`
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	LongDescription string   `yaml:"long_description"`
	Technologies    []string `yaml:"technologies"`
	ImageURL        string   `yaml:"image_url"`
	LiveURL         string   `yaml:"live_url"`
	GithubURL       string   `yaml:"github_url"`
	Featured        bool     `yaml:"featured"`
}

// PreviewTech is the list shown on the card.
func (p Project) PreviewTech() []string {
	if len(p.Technologies) <= PreviewTechCount {
		return p.Technologies
	}
	return p.Technologies[:PreviewTechCount]
}

// MoreTech is the number of technologies hidden from the card.
func (p Project) MoreTech() int {
	if n := len(p.Technologies) - PreviewTechCount; n > 0 {
		return n
	}
	return 0
}

type ContactInfo struct {
	Heading      string `yaml:"heading"`
	Intro        string `yaml:"intro"`
	Email        string `yaml:"email"`
	ResponseTime string `yaml:"response_time"`
	Availability string `yaml:"availability"`
}

// Content is everything the page shows apart from the contact form state.
type Content struct {
	Title    string      `yaml:"title"`
	Nav      []NavItem   `yaml:"nav"`
	Hero     Hero        `yaml:"hero"`
	Socials  []Social    `yaml:"socials"`
	About    About       `yaml:"about"`
	Skills   Skills      `yaml:"skills"`
	Projects []Project   `yaml:"projects"`
	Contact  ContactInfo `yaml:"contact"`
}

// Default parses the embedded content.
func Default() (*Content, error) {
	return Load(bytes.NewReader(defaultContent))
}

// Load parses and validates content from r.
func Load(r io.Reader) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("site: decode content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants templates rely on.
func (c *Content) Validate() error {
	var errs []error
	known := make(map[string]bool, len(Sections))
	for _, s := range Sections {
		known[s] = true
	}
	for _, n := range c.Nav {
		if !known[n.ID] {
			errs = append(errs, fmt.Errorf("nav %q points at unknown section %q", n.Label, n.ID))
		}
	}
	for _, l := range c.Hero.CTA {
		if !known[l.Target] {
			errs = append(errs, fmt.Errorf("hero link %q points at unknown section %q", l.Label, l.Target))
		}
	}
	seen := make(map[int]bool, len(c.Projects))
	for _, p := range c.Projects {
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate project id %d", p.ID))
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Title) == "" {
			errs = append(errs, fmt.Errorf("project %d has no title", p.ID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("site: invalid content: %w", err)
	}
	return nil
}

// Project looks a project up by id.
func (c *Content) Project(id int) (Project, bool) {
	for _, p := range c.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// Featured returns the projects flagged for the top row.
func (c *Content) Featured() []Project {
	var out []Project
	for _, p := range c.Projects {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}

// SkillsView picks which rendering of the skills section the page uses.
type SkillsView string

const (
	SkillsCSS SkillsView = "css"
	Skills3D  SkillsView = "3d"
)

// ParseSkillsView accepts "css" or "3d"; anything else is an error.
func ParseSkillsView(s string) (SkillsView, error) {
	switch v := SkillsView(strings.ToLower(strings.TrimSpace(s))); v {
	case SkillsCSS, Skills3D:
		return v, nil
	}
	return "", fmt.Errorf("site: unknown skills view %q", s)
}
