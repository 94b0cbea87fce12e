package dashboard

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/key"
	"github.com/grovetools/homed/config"
)

// KeyOverrides maps snake_case binding names (toggle, increase, quit...)
// to replacement keys. It is read from tui.keys in homed.yml.
type KeyOverrides map[string][]string

// LoadKeyOverrides returns the tui.keys section of cfg, or nil.
func LoadKeyOverrides(cfg *config.Config) (KeyOverrides, error) {
	if cfg == nil {
		return nil, nil
	}
	var tuiCfg struct {
		Keys KeyOverrides `yaml:"keys"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err != nil {
		return nil, err
	}
	return tuiCfg.Keys, nil
}

// WithOverrides returns a copy of k with the overridden bindings replaced.
// The help text keeps its description and shows the first new key.
func (k KeyMap) WithOverrides(overrides KeyOverrides) KeyMap {
	if len(overrides) == 0 {
		return k
	}
	v := reflect.ValueOf(&k).Elem()
	t := v.Type()
	bindingType := reflect.TypeOf(key.Binding{})

	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Type != bindingType {
			continue
		}
		keys := overrides[camelToSnake(t.Field(i).Name)]
		if len(keys) == 0 {
			continue
		}
		current := v.Field(i).Interface().(key.Binding)
		v.Field(i).Set(reflect.ValueOf(key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], current.Help().Desc),
		)))
	}
	return k
}

// camelToSnake converts ToggleEco to toggle_eco.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
