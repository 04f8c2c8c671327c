// Package loader reads question catalogs and framework documents from YAML
// files and seeds them into the registry.
//
// Layout under the root directory:
//
//	questions/**/*.yaml   lists of catalog questions
//	frameworks/**/*.yaml  one framework version per file
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/pkg/questionnaire"
	"github.com/riskframe/riskframe/pkg/scoring"
)

const (
	questionPattern  = "questions/**/*.{yaml,yml}"
	frameworkPattern = "frameworks/**/*.{yaml,yml}"
)

// FrameworkDoc is one framework version as written in a seed file.
type FrameworkDoc struct {
	Code     string                  `yaml:"code"`
	Name     string                  `yaml:"name"`
	Engine   string                  `yaml:"engine"`
	Activate bool                    `yaml:"activate"`
	Config   scoring.Config          `yaml:"config"`
	Bindings []questionnaire.Binding `yaml:"bindings"`

	// Path is the file the document was read from, relative to the root.
	Path string `yaml:"-"`
}

// Bundle is everything found under a seed directory.
type Bundle struct {
	Questions  []questionnaire.Question
	Frameworks []FrameworkDoc
}

type questionFile struct {
	Questions []questionnaire.Question `yaml:"questions"`
}

// Load reads every seed file under fsys. Files are processed in lexical
// order; a question key defined twice is an error.
func Load(fsys fs.FS) (*Bundle, error) {
	b := &Bundle{}

	qpaths, err := glob(fsys, questionPattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]string)
	for _, path := range qpaths {
		var f questionFile
		if err := decodeFile(fsys, path, &f); err != nil {
			return nil, err
		}
		for _, q := range f.Questions {
			if prev, dup := seen[q.Key]; dup {
				return nil, fmt.Errorf("%s: question %q already defined in %s", path, q.Key, prev)
			}
			seen[q.Key] = path
			b.Questions = append(b.Questions, q)
		}
	}

	fpaths, err := glob(fsys, frameworkPattern)
	if err != nil {
		return nil, err
	}
	for _, path := range fpaths {
		var doc FrameworkDoc
		if err := decodeFile(fsys, path, &doc); err != nil {
			return nil, err
		}
		if doc.Code == "" {
			return nil, fmt.Errorf("%s: framework code is required", path)
		}
		doc.Path = path
		b.Frameworks = append(b.Frameworks, doc)
	}
	return b, nil
}

// LoadFramework reads a single framework document.
func LoadFramework(fsys fs.FS, path string) (*FrameworkDoc, error) {
	var doc FrameworkDoc
	if err := decodeFile(fsys, path, &doc); err != nil {
		return nil, err
	}
	doc.Path = path
	return &doc, nil
}

func glob(fsys fs.FS, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("evaluate pattern %s: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func decodeFile(fsys fs.FS, path string, v any) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Report summarizes what Apply changed.
type Report struct {
	QuestionsCreated  int
	QuestionsSkipped  int
	FrameworksCreated int
	VersionsPublished []string
	VersionsUnchanged []string
}

// Apply seeds a bundle into the registry. It is idempotent: existing
// questions and frameworks are left alone, and a framework version is only
// published when its configuration or bindings differ from the latest one.
func Apply(ctx context.Context, reg *registry.Service, b *Bundle, log *logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Report{}

	for _, q := range b.Questions {
		_, err := reg.CreateQuestion(ctx, q)
		switch {
		case errors.Is(err, registry.ErrConflict):
			r.QuestionsSkipped++
		case err != nil:
			return r, fmt.Errorf("question %s: %w", q.Key, err)
		default:
			r.QuestionsCreated++
		}
	}

	for _, doc := range b.Frameworks {
		_, err := reg.GetFramework(ctx, doc.Code)
		if errors.Is(err, registry.ErrNotFound) {
			if _, err := reg.CreateFramework(ctx, registry.Framework{Code: doc.Code, Name: doc.Name, Engine: doc.Engine}); err != nil {
				return r, fmt.Errorf("%s: %w", doc.Path, err)
			}
			r.FrameworksCreated++
		} else if err != nil {
			return r, fmt.Errorf("%s: %w", doc.Path, err)
		}

		versions, err := reg.ListVersions(ctx, doc.Code)
		if err != nil {
			return r, fmt.Errorf("%s: %w", doc.Path, err)
		}
		if n := len(versions); n > 0 && sameVersion(versions[n-1], doc) {
			r.VersionsUnchanged = append(r.VersionsUnchanged, doc.Code)
			log.Debug("framework version unchanged", "framework", doc.Code, "number", versions[n-1].Number)
			continue
		}

		v, err := reg.PublishVersion(ctx, registry.PublishRequest{
			FrameworkCode: doc.Code,
			Config:        doc.Config,
			Bindings:      doc.Bindings,
			Activate:      doc.Activate,
		})
		if err != nil {
			return r, fmt.Errorf("%s: %w", doc.Path, err)
		}
		r.VersionsPublished = append(r.VersionsPublished, fmt.Sprintf("%s@%d", v.FrameworkCode, v.Number))
	}
	return r, nil
}

// sameVersion compares canonical JSON encodings; both sides are plain data.
func sameVersion(v registry.Version, doc FrameworkDoc) bool {
	a, err1 := json.Marshal(struct {
		C scoring.Config
		B []questionnaire.Binding
	}{v.Config, v.Bindings})
	b, err2 := json.Marshal(struct {
		C scoring.Config
		B []questionnaire.Binding
	}{doc.Config, doc.Bindings})
	return err1 == nil && err2 == nil && bytes.Equal(a, b)
}
