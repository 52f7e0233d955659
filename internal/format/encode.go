package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vk/jsonshape/internal/render"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Encoder writes a rendered value tree in one wire format.
type Encoder interface {
	Encode(w io.Writer, v any) error
	// Extension is the conventional file extension, without the dot.
	Extension() string
}

var encoders = map[string]func(indent int) Encoder{
	"json":    func(indent int) Encoder { return jsonEncoder{indent: indent} },
	"yaml":    func(indent int) Encoder { return yamlEncoder{indent: indent} },
	"msgpack": func(int) Encoder { return msgpackEncoder{} },
}

// Names returns the supported format names, sorted.
func Names() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the encoder for a format name. indent is the number of
// spaces per level for text formats; zero means compact JSON and the YAML
// default.
func Lookup(name string, indent int) (Encoder, error) {
	newEncoder, ok := encoders[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q, expected one of [%s]", name, strings.Join(Names(), ", "))
	}
	if indent < 0 {
		return nil, fmt.Errorf("indent must not be negative, got %d", indent)
	}
	return newEncoder(indent), nil
}

type jsonEncoder struct {
	indent int
}

func (jsonEncoder) Extension() string { return "json" }

// Encode relies on render.Mapping implementing json.Marshaler in key order.
func (e jsonEncoder) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if e.indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", e.indent))
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

type yamlEncoder struct {
	indent int
}

func (yamlEncoder) Extension() string { return "yaml" }

func (e yamlEncoder) Encode(w io.Writer, v any) error {
	doc, err := yamlNode(v)
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	enc := yaml.NewEncoder(w)
	if e.indent > 0 {
		enc.SetIndent(e.indent)
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// yamlNode builds a node tree so mappings keep their key order.
func yamlNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *render.Mapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			val, err := yamlNode(pair.Value)
			if err != nil {
				return nil, err
			}
			key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: pair.Key}
			n.Content = append(n.Content, key, val)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			val, err := yamlNode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, val)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}

type msgpackEncoder struct{}

func (msgpackEncoder) Extension() string { return "msgpack" }

func (msgpackEncoder) Encode(w io.Writer, v any) error {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	enc.SetCustomStructTag("json")
	if err := encodeMsgpack(enc, v); err != nil {
		return fmt.Errorf("failed to encode msgpack: %w", err)
	}
	return nil
}

func encodeMsgpack(enc *msgpack.Encoder, v any) error {
	switch t := v.(type) {
	case *render.Mapping:
		if err := enc.EncodeMapLen(t.Len()); err != nil {
			return err
		}
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			if err := enc.EncodeString(pair.Key); err != nil {
				return err
			}
			if err := encodeMsgpack(enc, pair.Value); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if err := enc.EncodeArrayLen(len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := encodeMsgpack(enc, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(v)
	}
}
