package ingest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eletricells/vantdge/internal/engine"
	"github.com/eletricells/vantdge/internal/model"
)

// rawTarget is the on-disk shape of one target. Records stay untyped until
// Estimates and Candidates decode them.
type rawTarget struct {
	ID         string   `yaml:"id"`
	Contexts   []string `yaml:"contexts"`
	Kinds      []string `yaml:"kinds"`
	Estimates  []Record `yaml:"estimates"`
	Candidates []Record `yaml:"candidates"`
}

// document accepts either a list of targets or a single bare target.
type document struct {
	Targets []rawTarget `yaml:"targets"`

	ID         string   `yaml:"id"`
	Contexts   []string `yaml:"contexts"`
	Kinds      []string `yaml:"kinds"`
	Estimates  []Record `yaml:"estimates"`
	Candidates []Record `yaml:"candidates"`
}

// LoadFile reads targets from a YAML or JSON file. "-" reads stdin.
func LoadFile(path string) ([]engine.Target, []model.ValidationIssue, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: read %s", path)
	}
	return Decode(bytes.NewReader(data))
}

// Decode reads targets from YAML or JSON. Malformed documents are an
// error; malformed records inside a well-formed document are issues.
func Decode(r io.Reader) ([]engine.Target, []model.ValidationIssue, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if eris.Is(err, io.EOF) {
			return nil, nil, nil
		}
		return nil, nil, eris.Wrap(err, "ingest: parse document")
	}

	raws := doc.Targets
	if len(raws) == 0 && (len(doc.Estimates) > 0 || len(doc.Candidates) > 0 || doc.ID != "") {
		raws = []rawTarget{{
			ID:         doc.ID,
			Contexts:   doc.Contexts,
			Kinds:      doc.Kinds,
			Estimates:  doc.Estimates,
			Candidates: doc.Candidates,
		}}
	}

	var (
		targets []engine.Target
		issues  []model.ValidationIssue
	)
	for i, raw := range raws {
		t, is := raw.target(i)
		targets = append(targets, t)
		issues = append(issues, is...)
	}

	zap.L().Debug("ingest: decoded targets",
		zap.Int("targets", len(targets)),
		zap.Int("issues", len(issues)),
	)
	return targets, issues, nil
}

func (raw rawTarget) target(index int) (engine.Target, []model.ValidationIssue) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = fmt.Sprintf("target-%d", index+1)
	}
	t := engine.Target{ID: id}

	var issues []model.ValidationIssue
	for _, c := range raw.Contexts {
		if c = strings.TrimSpace(c); c != "" {
			t.Contexts = append(t.Contexts, c)
		}
	}
	for _, k := range raw.Kinds {
		kind, ok := model.ParseValueKind(k)
		if !ok {
			issues = append(issues, issue(model.SeverityWarning, id, "kinds", "unrecognised value kind %q ignored", k))
			continue
		}
		t.Kinds = append(t.Kinds, kind)
	}

	estimates, is := Estimates(raw.Estimates, id+"/estimates")
	t.Estimates = estimates
	issues = append(issues, is...)

	candidates, is := Candidates(raw.Candidates, id+"/candidates")
	t.Candidates = candidates
	issues = append(issues, is...)

	return t, issues
}
