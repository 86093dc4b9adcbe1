package store

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	"github.com/mrz1836/cadence/internal/errors"
)

// defaultEnvironmentName is selected when no environment is requested.
const defaultEnvironmentName = "default"

// errEmptyDocument reports a definition file without any YAML document.
var errEmptyDocument = stderrors.New("empty document")

// FileDefinitions reads definitions from YAML files laid out as
// <dir>/{scenarios,campaigns,datasets,environments}/*.yaml.
// Files are read on every call so edits are picked up without a restart.
type FileDefinitions struct {
	dir string
}

var _ Definitions = (*FileDefinitions)(nil)

// NewFileDefinitions creates a definitions store rooted at dir.
func NewFileDefinitions(dir string) *FileDefinitions {
	return &FileDefinitions{dir: dir}
}

// Dir returns the root directory of the definitions.
func (d *FileDefinitions) Dir() string {
	return d.dir
}

// Scenario returns a scenario by id.
func (d *FileDefinitions) Scenario(ctx context.Context, id string) (domain.Scenario, error) {
	all, err := d.Scenarios(ctx)
	if err != nil {
		return domain.Scenario{}, err
	}
	for _, s := range all {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.Scenario{}, fmt.Errorf("%w: %s", errors.ErrScenarioNotFound, id)
}

// Scenarios returns every scenario sorted by id.
func (d *FileDefinitions) Scenarios(ctx context.Context) ([]domain.Scenario, error) {
	out, err := loadAll[domain.Scenario](ctx, filepath.Join(d.dir, constants.ScenariosDir))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Campaign returns a campaign by id.
func (d *FileDefinitions) Campaign(ctx context.Context, id string) (domain.Campaign, error) {
	all, err := d.Campaigns(ctx)
	if err != nil {
		return domain.Campaign{}, err
	}
	for _, c := range all {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Campaign{}, fmt.Errorf("%w: %s", errors.ErrCampaignNotFound, id)
}

// Campaigns returns every campaign sorted by id.
func (d *FileDefinitions) Campaigns(ctx context.Context) ([]domain.Campaign, error) {
	out, err := loadAll[domain.Campaign](ctx, filepath.Join(d.dir, constants.CampaignsDir))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dataset returns a dataset by id.
func (d *FileDefinitions) Dataset(ctx context.Context, id string) (domain.Dataset, error) {
	all, err := loadAll[domain.Dataset](ctx, filepath.Join(d.dir, constants.DatasetsDir))
	if err != nil {
		return domain.Dataset{}, err
	}
	for _, ds := range all {
		if ds.ID == id {
			return ds, nil
		}
	}
	return domain.Dataset{}, fmt.Errorf("%w: %s", errors.ErrDatasetNotFound, id)
}

// Datasets returns every dataset sorted by id.
func (d *FileDefinitions) Datasets(ctx context.Context) ([]domain.Dataset, error) {
	out, err := loadAll[domain.Dataset](ctx, filepath.Join(d.dir, constants.DatasetsDir))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Environment returns an environment by name.
func (d *FileDefinitions) Environment(ctx context.Context, name string) (domain.Environment, error) {
	all, err := d.Environments(ctx)
	if err != nil {
		return domain.Environment{}, err
	}
	return pickEnvironment(all, name)
}

// Environments returns every environment sorted by name.
func (d *FileDefinitions) Environments(ctx context.Context) ([]domain.Environment, error) {
	out, err := loadAll[domain.Environment](ctx, filepath.Join(d.dir, constants.EnvironmentsDir))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Check loads every definition and reports each problem found: decoding and
// validation failures, duplicate ids and dangling references between
// campaigns, scenarios and datasets. An empty result means the tree is
// consistent.
func (d *FileDefinitions) Check(ctx context.Context) []error {
	var problems []error

	scenarios, errs := loadEach[domain.Scenario](ctx, filepath.Join(d.dir, constants.ScenariosDir))
	problems = append(problems, errs...)
	campaigns, errs := loadEach[domain.Campaign](ctx, filepath.Join(d.dir, constants.CampaignsDir))
	problems = append(problems, errs...)
	datasets, errs := loadEach[domain.Dataset](ctx, filepath.Join(d.dir, constants.DatasetsDir))
	problems = append(problems, errs...)
	environments, errs := loadEach[domain.Environment](ctx, filepath.Join(d.dir, constants.EnvironmentsDir))
	problems = append(problems, errs...)

	scenarioIDs := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if scenarioIDs[s.ID] {
			problems = append(problems, fmt.Errorf("%w: duplicate scenario id %q", errors.ErrDefinitionInvalid, s.ID))
		}
		scenarioIDs[s.ID] = true
	}
	datasetIDs := make(map[string]bool, len(datasets))
	for _, ds := range datasets {
		if datasetIDs[ds.ID] {
			problems = append(problems, fmt.Errorf("%w: duplicate dataset id %q", errors.ErrDefinitionInvalid, ds.ID))
		}
		datasetIDs[ds.ID] = true
	}
	envNames := make(map[string]bool, len(environments))
	for _, e := range environments {
		if envNames[e.Name] {
			problems = append(problems, fmt.Errorf("%w: duplicate environment %q", errors.ErrDefinitionInvalid, e.Name))
		}
		envNames[e.Name] = true
	}

	for _, s := range scenarios {
		if s.DefaultDatasetID != "" && !datasetIDs[s.DefaultDatasetID] {
			problems = append(problems, fmt.Errorf("%w: scenario %q: %w: %s",
				errors.ErrDefinitionInvalid, s.ID, errors.ErrDatasetNotFound, s.DefaultDatasetID))
		}
	}

	campaignIDs := make(map[string]bool, len(campaigns))
	for _, c := range campaigns {
		if campaignIDs[c.ID] {
			problems = append(problems, fmt.Errorf("%w: duplicate campaign id %q", errors.ErrDefinitionInvalid, c.ID))
		}
		campaignIDs[c.ID] = true

		if c.Environment != "" && !envNames[c.Environment] {
			problems = append(problems, fmt.Errorf("%w: campaign %q: %w: %s",
				errors.ErrDefinitionInvalid, c.ID, errors.ErrEnvironmentNotFound, c.Environment))
		}
		if c.DatasetID != "" && !datasetIDs[c.DatasetID] {
			problems = append(problems, fmt.Errorf("%w: campaign %q: %w: %s",
				errors.ErrDefinitionInvalid, c.ID, errors.ErrDatasetNotFound, c.DatasetID))
		}
		for _, cs := range c.Scenarios {
			if !scenarioIDs[cs.ScenarioID] {
				problems = append(problems, fmt.Errorf("%w: campaign %q: %w: %s",
					errors.ErrDefinitionInvalid, c.ID, errors.ErrScenarioNotFound, cs.ScenarioID))
			}
			if cs.DatasetID != "" && !datasetIDs[cs.DatasetID] {
				problems = append(problems, fmt.Errorf("%w: campaign %q: %w: %s",
					errors.ErrDefinitionInvalid, c.ID, errors.ErrDatasetNotFound, cs.DatasetID))
			}
		}
	}

	return problems
}

// pickEnvironment resolves name against envs, applying the default rule for
// an empty name.
func pickEnvironment(envs []domain.Environment, name string) (domain.Environment, error) {
	if name == "" {
		for _, e := range envs {
			if e.Name == defaultEnvironmentName {
				return e, nil
			}
		}
		if len(envs) == 1 {
			return envs[0], nil
		}
		return domain.Environment{}, fmt.Errorf("%w: no default environment among %d", errors.ErrEnvironmentNotFound, len(envs))
	}
	for _, e := range envs {
		if e.Name == name {
			return e, nil
		}
	}
	return domain.Environment{}, fmt.Errorf("%w: %s", errors.ErrEnvironmentNotFound, name)
}

// loadAll decodes every definition file of dir, failing on the first problem.
// A missing directory yields no definitions.
func loadAll[T any](ctx context.Context, dir string) ([]T, error) {
	out, errs := loadEach[T](ctx, dir)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return out, nil
}

// loadEach decodes every definition file of dir and collects one error per
// unusable file.
func loadEach[T any](ctx context.Context, dir string) ([]T, []error) {
	select {
	case <-ctx.Done():
		return nil, []error{ctx.Err()}
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{fmt.Errorf("failed to read definitions directory %s: %w", dir, err)}
	}

	var (
		out  []T
		errs []error
	)
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		v, err := decodeFile[T](path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, v)
	}
	return out, errs
}

// decodeFile strictly decodes and validates one definition file.
func decodeFile[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path) //#nosec G304 -- path is built from the definitions directory listing
	if err != nil {
		return v, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := decodeYAML(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %w", errors.ErrDefinitionInvalid, path, err)
	}
	if err := validateDefinition(path, v); err != nil {
		return v, err
	}
	return v, nil
}

// decodeYAML decodes data rejecting unknown fields. An empty document is an error.
func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errEmptyDocument
		}
		return err
	}
	return nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// yamlFieldName reports validation failures under their YAML key.
func yamlFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}
