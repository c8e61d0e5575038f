package content

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// ErrNoFrontmatter is returned when a document does not open with "---".
var ErrNoFrontmatter = errors.New("no frontmatter")

// Frontmatter is the YAML header shared by agent, skill and workflow documents.
type Frontmatter struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Extra       map[string]any `yaml:",inline"`
}

// ParseFrontmatter splits a markdown document into its YAML header and body.
func ParseFrontmatter(data []byte) (*Frontmatter, []byte, error) {
	data = bytes.TrimLeft(data, " \t\r\n")
	if !bytes.HasPrefix(data, []byte(frontmatterDelimiter)) {
		return nil, data, ErrNoFrontmatter
	}
	rest := data[len(frontmatterDelimiter):]

	idx := bytes.Index(rest, []byte("\n"+frontmatterDelimiter))
	if idx == -1 {
		return nil, data, errors.New("missing closing frontmatter delimiter")
	}

	header := rest[:idx]
	body := bytes.TrimLeft(rest[idx+len("\n"+frontmatterDelimiter):], "\r\n")

	var fm Frontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, data, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	return &fm, body, nil
}

// Issue is a problem found while validating a content tree.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string { return i.Path + ": " + i.Message }

// Validate checks agent documents and skill manifests for a parseable
// frontmatter carrying a name and a description. Skill directories without
// SKILL.md are reported too. The result is sorted by path.
func Validate(fsys fs.FS) ([]Issue, error) {
	var issues []Issue

	agents, err := fs.ReadDir(fsys, string(Agents))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, e := range agents {
		if Hidden(e.Name()) || !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		issues = append(issues, checkDocument(fsys, path.Join(string(Agents), e.Name()))...)
	}

	skills, err := fs.ReadDir(fsys, string(Skills))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, e := range skills {
		if Hidden(e.Name()) || !e.IsDir() {
			continue
		}
		manifest := path.Join(string(Skills), e.Name(), SkillFile)
		if !Exists(fsys, manifest) {
			issues = append(issues, Issue{Path: path.Join(string(Skills), e.Name()), Message: "missing " + SkillFile})
			continue
		}
		issues = append(issues, checkDocument(fsys, manifest)...)
	}

	sort.Slice(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return issues, nil
}

func checkDocument(fsys fs.FS, name string) []Issue {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return []Issue{{Path: name, Message: err.Error()}}
	}
	fm, _, err := ParseFrontmatter(data)
	if err != nil {
		return []Issue{{Path: name, Message: err.Error()}}
	}

	var issues []Issue
	if strings.TrimSpace(fm.Name) == "" {
		issues = append(issues, Issue{Path: name, Message: "frontmatter has no name"})
	}
	if strings.TrimSpace(fm.Description) == "" {
		issues = append(issues, Issue{Path: name, Message: "frontmatter has no description"})
	}
	return issues
}
