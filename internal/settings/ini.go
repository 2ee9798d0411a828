package settings

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// generalSection holds options written outside any [Section] header.
const generalSection = "general"

var codecs = newCodecRegistry()

func newCodecRegistry() *viper.DefaultCodecRegistry {
	r := viper.NewCodecRegistry()
	r.RegisterCodec("ini", iniCodec{})
	return r
}

// iniCodec maps one level of [Section] headers onto viper's nested keys.
type iniCodec struct{}

func (iniCodec) Decode(b []byte, v map[string]any) error {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, b)
	if err != nil {
		return err
	}
	for _, sec := range f.Sections() {
		keys := sec.Keys()
		if len(keys) == 0 {
			continue
		}
		name := sec.Name()
		if strings.EqualFold(name, ini.DefaultSection) {
			name = generalSection
		}
		opts, ok := v[name].(map[string]any)
		if !ok {
			opts = make(map[string]any, len(keys))
			v[name] = opts
		}
		for _, k := range keys {
			opts[k.Name()] = k.String()
		}
	}
	return nil
}

func (iniCodec) Encode(v map[string]any) ([]byte, error) {
	f := ini.Empty()

	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		opts, ok := v[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("ini: %q is not inside a section", name)
		}
		title := name
		if name == generalSection {
			title = "General"
		}
		sec, err := f.NewSection(title)
		if err != nil {
			return nil, err
		}

		keys := make([]string, 0, len(opts))
		for k := range opts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val, err := cast.ToStringE(opts[k])
			if err != nil {
				return nil, fmt.Errorf("ini: %s.%s: %w", name, k, err)
			}
			if _, err := sec.NewKey(k, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
