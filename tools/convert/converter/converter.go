// Package converter translates messages between CQ-code strings, OneBot
// segment arrays (JSON) and an equivalent YAML form.
package converter

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/sealdice/cqsocket/cqcode"
)

const (
	FormatCQ   = "cq"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

type yamlSegment struct {
	Type string    `yaml:"type"`
	Data yaml.Node `yaml:"data"`
}

// ParseMessage decodes data in the given input format.
func ParseMessage(data []byte, format string) (cqcode.Message, error) {
	switch format {
	case FormatCQ:
		return cqcode.Parse(strings.TrimRight(string(data), "\r\n")), nil
	case FormatJSON:
		msg := cqcode.ParseJSON(data)
		if msg == nil && len(strings.TrimSpace(string(data))) > 0 {
			return nil, fmt.Errorf("json input must be a string or a segment array")
		}
		return msg, nil
	case FormatYAML:
		return parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

func parseYAML(data []byte) (cqcode.Message, error) {
	var segs []yamlSegment
	if err := yaml.Unmarshal(data, &segs); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	msg := make(cqcode.Message, 0, len(segs))
	for i, seg := range segs {
		if seg.Type == "" {
			return nil, fmt.Errorf("segment %d has no type", i)
		}
		d := cqcode.NewData()
		content := seg.Data.Content
		for k := 0; k+1 < len(content); k += 2 {
			var v any
			if err := content[k+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("segment %d key %s: %w", i, content[k].Value, err)
			}
			if n, ok := v.(int); ok {
				v = int64(n)
			}
			d.Set(content[k].Value, v)
		}
		msg = append(msg, cqcode.Build(seg.Type, d))
	}
	return msg, nil
}

// MarshalOutput encodes msg in the given output format.
func MarshalOutput(msg cqcode.Message, format string) ([]byte, error) {
	switch format {
	case FormatCQ:
		return []byte(msg.String()), nil
	case FormatText:
		return []byte(msg.PlainText()), nil
	case FormatJSON:
		return sonic.ConfigStd.MarshalIndent(msg, "", "  ")
	case FormatYAML:
		raw, err := sonic.Marshal(msg)
		if err != nil {
			return nil, err
		}
		// JSON is valid YAML; decoding into a node keeps key order.
		var doc yaml.Node
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		blockStyle(&doc)
		return yaml.Marshal(&doc)
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
