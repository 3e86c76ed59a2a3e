package actions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

const positionalArgumentsKey = "positional_arguments"

// Parameters are the raw action_parameters with positional_arguments split off.
type Parameters struct {
	Args   []any
	Values map[string]any
}

type Factory func(p Parameters) (Action, error)

// registry maps each catalog name to the factory that builds it.
var registry = map[string]Factory{}

// RegisterActionFactory adds a kind to the catalog. It is called from init.
func RegisterActionFactory(name string, factory Factory) {
	registry[name] = factory
}

// SupportedActions lists the catalog names in sorted order.
func SupportedActions() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownActionError is returned by Build for a name outside the catalog.
type UnknownActionError struct {
	Name      string
	Supported []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action %q is not supported, supported actions are: %s", e.Name, strings.Join(e.Supported, ", "))
}

// Build looks up name in the catalog and constructs the action from params.
func Build(name string, params map[string]any) (*Built, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, &UnknownActionError{Name: name, Supported: SupportedActions()}
	}
	action, err := factory(splitParameters(params))
	if err != nil {
		return nil, fmt.Errorf("building action %q: %w", name, err)
	}
	return &Built{Name: name, Action: action}, nil
}

// BuildDefinition builds a nested {action_name, action_parameters} mapping.
func BuildDefinition(raw any) (*Built, error) {
	def, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("action definition must be a mapping, got %T", raw)
	}
	name, _ := def["action_name"].(string)
	if name == "" {
		return nil, fmt.Errorf("action definition is missing 'action_name'")
	}
	params, err := NormalizeParameters(def["action_parameters"])
	if err != nil {
		return nil, fmt.Errorf("action %q: %w", name, err)
	}
	return Build(name, params)
}

// NormalizeParameters accepts the action_parameters value as written in the
// configuration. Missing values and empty lists become an empty mapping.
func NormalizeParameters(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case []any:
		if len(v) == 0 {
			return map[string]any{}, nil
		}
	}
	return nil, fmt.Errorf("action_parameters must be a mapping, got %T", raw)
}

func splitParameters(params map[string]any) Parameters {
	p := Parameters{Values: make(map[string]any, len(params))}
	for k, v := range params {
		if k != positionalArgumentsKey {
			p.Values[k] = v
			continue
		}
		switch args := v.(type) {
		case nil:
		case []any:
			p.Args = args
		default:
			p.Args = []any{args}
		}
	}
	return p
}

// decode fills out from values. Unknown keys are rejected unless out has a
// ",remain" field to collect them.
func decode(values map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(values); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

// decodeFixed is decode for kinds that take no positional arguments.
func decodeFixed(p Parameters, out any) error {
	if len(p.Args) > 0 {
		return fmt.Errorf("%s is not supported by this action", positionalArgumentsKey)
	}
	return decode(p.Values, out)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("parameter %q is required", field)
	}
	return nil
}
