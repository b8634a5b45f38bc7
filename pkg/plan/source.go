package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into a catalog.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a Source serving deep copies of the given plans.
func NewInMemSource(plans ...Plan) Source {
	copies := make([]Plan, 0, len(plans))
	for _, p := range plans {
		copies = append(copies, p.clone())
	}
	return &inMemSource{plans: copies}
}

func (s *inMemSource) Load(ctx context.Context) ([]Plan, error) {
	out := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p.clone())
	}
	return out, nil
}

type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source reading plans from a YAML file.
// The file is read on every Load; callers build the catalog once at startup.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) ([]Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read plans file %s: %w", s.path, err)
	}
	return ParseYAML(data)
}

type yamlCatalog struct {
	Plans []yamlPlan `yaml:"plans"`
}

type yamlPlan struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Tier        Tier                 `yaml:"tier"`
	Position    int                  `yaml:"position"`
	Price       Money                `yaml:"price"`
	Interval    BillingInterval      `yaml:"interval"`
	Limits      map[string]yamlLimit `yaml:"limits"`
}

// yamlLimit accepts either an integer or the literal "unlimited".
type yamlLimit int64

func (l *yamlLimit) UnmarshalYAML(node *yaml.Node) error {
	if strings.EqualFold(node.Value, "unlimited") {
		*l = yamlLimit(Unlimited)
		return nil
	}
	var v int64
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("line %d: limit must be an integer or \"unlimited\": %w", node.Line, err)
	}
	*l = yamlLimit(v)
	return nil
}

// ParseYAML decodes a plan list. Unknown action names are rejected here
// rather than being carried into the catalog.
func ParseYAML(data []byte) ([]Plan, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}

	plans := make([]Plan, 0, len(doc.Plans))
	for _, yp := range doc.Plans {
		limits := make(map[Action]int64, len(yp.Limits))
		for name, limit := range yp.Limits {
			a, err := ParseAction(name)
			if err != nil {
				return nil, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s: %w: %q", yp.ID, err, name))
			}
			limits[a] = int64(limit)
		}

		interval := yp.Interval
		if interval == "" {
			interval = BillingIntervalNone
		}

		plans = append(plans, Plan{
			ID:          yp.ID,
			Name:        yp.Name,
			Description: yp.Description,
			Tier:        yp.Tier,
			Position:    yp.Position,
			Limits:      limits,
			Price:       yp.Price,
			Interval:    interval,
		})
	}

	return plans, nil
}
