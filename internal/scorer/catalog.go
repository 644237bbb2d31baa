// Package scorer implements the five dimension scorers, their catalogs,
// and the weight profile selector.
package scorer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the externally-supplied token lists the scorers match
// against. Lists are configuration, not code: a YAML file can override the
// compiled defaults.
type Catalog struct {
	Skills         []string `yaml:"skills"`
	Certifications []string `yaml:"certifications"`
	TechIndicators []string `yaml:"tech_indicators"`
	RelevantFields []string `yaml:"relevant_fields"`
}

// DefaultCatalog returns the compiled catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Skills: []string{
			"python", "java", "javascript", "typescript", "go", "golang", "c++", "c#",
			"ruby", "php", "rust", "kotlin", "swift", "scala", "sql", "nosql",
			"django", "flask", "fastapi", "spring", "react", "angular", "vue", "node",
			"express", "rails", ".net", "laravel",
			"aws", "azure", "gcp", "kubernetes", "docker", "terraform", "ansible",
			"jenkins", "git", "linux", "bash", "ci/cd",
			"postgresql", "mysql", "mongodb", "redis", "kafka", "elasticsearch",
			"machine learning", "deep learning", "tensorflow", "pytorch", "pandas",
			"numpy", "scikit-learn", "spark", "hadoop", "airflow", "etl",
			"rest", "graphql", "grpc", "microservices", "agile", "scrum",
		},
		Certifications: []string{
			"cissp", "cisa", "cism", "ceh", "oscp", "comptia security+", "security+",
			"aws certified solutions architect", "aws certified developer",
			"aws certified sysops", "azure administrator", "azure solutions architect",
			"google cloud professional", "ckad", "cka", "pmp", "scrum master", "csm",
			"ccna", "ccnp", "itil", "togaf",
		},
		TechIndicators: []string{
			"engineer", "developer", "programmer", "architect", "devops", "sre",
			"cloud", "data", "ai", "ml", "machine learning", "database", "sql",
			"python", "javascript", "java", "c++", ".net", "react", "node",
			"kubernetes", "docker", "aws", "azure", "gcp", "infrastructure",
			"software", "tech", "cybersecurity", "security", "network", "analyst",
			"admin", "backend", "frontend", "fullstack",
		},
		RelevantFields: []string{
			"computer science", "software engineering", "information technology",
			"information systems", "computer engineering", "data science",
			"electrical engineering", "mathematics", "cybersecurity",
		},
	}
}

// LoadCatalog reads a YAML catalog file. Missing lists fall back to the
// compiled defaults so a partial override stays usable.
func LoadCatalog(path string) (Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("op=catalog.load: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("op=catalog.parse: %w", err)
	}
	def := DefaultCatalog()
	if len(c.Skills) == 0 {
		c.Skills = def.Skills
	}
	if len(c.Certifications) == 0 {
		c.Certifications = def.Certifications
	}
	if len(c.TechIndicators) == 0 {
		c.TechIndicators = def.TechIndicators
	}
	if len(c.RelevantFields) == 0 {
		c.RelevantFields = def.RelevantFields
	}
	return c, nil
}

// normalizeToken lowercases and trims a catalog or resume token.
func normalizeToken(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// tokenBoundary reports whether b can delimit a token. Symbols that appear
// inside catalog tokens ("c++", ".net", "ci/cd", "security+") do not count
// as boundaries.
func tokenBoundary(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return false
	case b == '+', b == '#', b == '.', b == '/':
		return false
	}
	return true
}

// countToken counts word-boundary occurrences of token in text.
// Both are matched case-insensitively.
func countToken(text, token string) int {
	text = strings.ToLower(text)
	token = normalizeToken(token)
	if token == "" || text == "" {
		return 0
	}
	count := 0
	for off := 0; ; {
		i := strings.Index(text[off:], token)
		if i < 0 {
			break
		}
		i += off
		startOK := i == 0 || tokenBoundary(text[i-1])
		end := i + len(token)
		endOK := end == len(text) || tokenBoundary(text[end])
		if startOK && endOK {
			count++
		}
		off = i + len(token)
	}
	return count
}

// containsToken reports whether token occurs in text under word boundaries.
func containsToken(text, token string) bool { return countToken(text, token) > 0 }

// matchCatalog returns the catalog entries present in text, normalized and
// deduplicated, preserving catalog order.
func matchCatalog(text string, catalog []string) []string {
	seen := make(map[string]struct{}, len(catalog))
	var out []string
	for _, entry := range catalog {
		tok := normalizeToken(entry)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		if containsToken(text, tok) {
			out = append(out, tok)
			seen[tok] = struct{}{}
		}
	}
	return out
}
