package definitions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"credence/internal/risk"
	"credence/internal/rules"
	"credence/internal/tier"
	"credence/internal/workflow"
	dErrors "credence/pkg/domain-errors"
)

// bundle is the YAML file shape for file-based definitions. A bundle may
// carry any subset of the tables; bundles in one directory are merged in
// file-name order.
type bundle struct {
	Rules       []rules.Rule          `yaml:"rules"`
	Regulations []rules.Regulation    `yaml:"regulations"`
	Factors     []risk.Factor         `yaml:"risk_factors"`
	Models      []risk.Model          `yaml:"risk_models"`
	Tiers       []tier.Tier           `yaml:"tiers"`
	Workflows   []workflow.Definition `yaml:"workflows"`
	Milestones  []workflow.Milestone  `yaml:"milestones"`
}

// LoadBundleDir reads every .yaml/.yml file under dir into one snapshot.
func LoadBundleDir(dir string) (*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read definitions directory")
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, dErrors.Newf(dErrors.CodeConfiguration, "no definition bundles in %s", dir)
	}

	snapshot := &Snapshot{Source: dir, LoadedAt: time.Now()}
	for _, file := range files {
		if err := mergeBundleFile(snapshot, file); err != nil {
			return nil, err
		}
	}
	snapshot.normalize()
	return snapshot, nil
}

func mergeBundleFile(snapshot *Snapshot, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, fmt.Sprintf("read bundle %s", path))
	}

	var b bundle
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, fmt.Sprintf("parse bundle %s", path))
	}

	snapshot.Rules = append(snapshot.Rules, b.Rules...)
	snapshot.Regulations = append(snapshot.Regulations, b.Regulations...)
	snapshot.Factors = append(snapshot.Factors, b.Factors...)
	snapshot.Models = append(snapshot.Models, b.Models...)
	snapshot.Tiers = append(snapshot.Tiers, b.Tiers...)
	snapshot.Workflows = append(snapshot.Workflows, b.Workflows...)
	snapshot.Milestones = append(snapshot.Milestones, b.Milestones...)
	return nil
}
