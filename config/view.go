package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/spektr-org/pivotkit/engine"
	"github.com/spektr-org/pivotkit/formula"
	"github.com/spektr-org/pivotkit/schema"
)

// ============================================================================
// VIEW — A persisted pipeline definition
// ============================================================================
// A view names its source, how to reconcile it, which filters apply, the
// pivot to build and the calculated fields to add. Files may be JSON, TOML
// or YAML; all three are read into a generic map first and decoded with
// mapstructure so the same keys work everywhere.
//
//   merge = "auto"                    infer the key
//   merge = { mergeBy = ["id"] }      explicit key
// ============================================================================

// Source locates the input of a view.
type Source struct {
	Path        string `json:"path,omitempty" mapstructure:"path"`
	Format      string `json:"format,omitempty" mapstructure:"format"` // "json", "csv"; empty means by extension
	GroupMarker string `json:"groupMarker,omitempty" mapstructure:"groupMarker"`
}

// View is a saved pipeline definition.
type View struct {
	Name             string                    `json:"name,omitempty" mapstructure:"name"`
	Source           Source                    `json:"source,omitempty" mapstructure:"source"`
	Merge            schema.MergeSpec          `json:"merge,omitempty" mapstructure:"merge"`
	Filters          engine.Filters            `json:"filters,omitempty" mapstructure:"filters"`
	Pivot            *engine.PivotSpec         `json:"pivot,omitempty" mapstructure:"pivot"`
	CalculatedFields []formula.CalculatedField `json:"calculatedFields,omitempty" mapstructure:"calculatedFields"`
	FieldMapping     map[string]string         `json:"fieldMapping,omitempty" mapstructure:"fieldMapping"`
}

// Validate checks the parts of the view the engine depends on.
func (v *View) Validate() error {
	var errs error
	if v.Pivot != nil {
		if err := v.Pivot.Validate(); err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, "pivot"))
		}
	}
	for i, f := range v.CalculatedFields {
		if strings.TrimSpace(f.Key()) == "" {
			errs = multierr.Append(errs, errors.Errorf("calculatedFields[%d]: name is required", i))
		}
		if strings.TrimSpace(f.Formula) == "" {
			errs = multierr.Append(errs, errors.Errorf("calculatedFields[%d]: formula is required", i))
		}
	}
	return errs
}

// LoadView reads a view file. The format follows the extension.
func LoadView(path string) (*View, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading view")
	}
	v, err := ParseView(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, errors.Wrapf(err, "view %s", path)
	}
	// Relative sources resolve against the view file.
	if v.Source.Path != "" && !filepath.IsAbs(v.Source.Path) {
		v.Source.Path = filepath.Join(filepath.Dir(path), v.Source.Path)
	}
	return v, nil
}

// ParseView decodes a view in the named format ("json", "toml", "yaml" or
// "yml") and validates it.
func ParseView(data []byte, format string) (*View, error) {
	raw := map[string]interface{}{}
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "decoding json")
		}
	case "toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, errors.Wrap(err, "decoding toml")
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(err, "decoding yaml")
		}
	default:
		return nil, errors.Errorf("unsupported view format %q", format)
	}

	v, err := DecodeView(raw)
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeView maps a generic document onto a View.
func DecodeView(raw map[string]interface{}) (*View, error) {
	v := &View{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mergeSpecHook,
			aggregationHook,
		),
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return nil, errors.Wrap(err, "building decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "decoding view")
	}
	return v, nil
}

var (
	mergeSpecType   = reflect.TypeOf(schema.MergeSpec{})
	aggregationType = reflect.TypeOf(engine.Aggregation(""))
)

// mergeSpecHook accepts merge = "auto".
func mergeSpecHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != mergeSpecType || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if !strings.EqualFold(s, "auto") {
		return nil, errors.Errorf("merge: unsupported mode %q", s)
	}
	return map[string]interface{}{"auto": true}, nil
}

// aggregationHook resolves aggregation aliases such as "avg".
func aggregationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != aggregationType || from.Kind() != reflect.String {
		return data, nil
	}
	agg, err := engine.ParseAggregation(data.(string))
	if err != nil {
		return nil, err
	}
	return string(agg), nil
}
