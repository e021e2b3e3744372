package compare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/babybob/babybob/pkg/review"
)

// Config is one comparable parameter map. Key order is preserved from
// insertion so comparison tables render rows in a stable, human-chosen
// order rather than map iteration order.
type Config struct {
	keys   []string
	values map[string]Value
}

// NewConfig creates an empty parameter map.
func NewConfig() *Config {
	return &Config{values: make(map[string]Value)}
}

// Set adds or replaces a parameter. A new key is appended to the order.
func (c *Config) Set(key string, v Value) *Config {
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
	return c
}

// Get returns the value for a key and whether the key is present.
func (c *Config) Get(key string) (Value, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the parameter keys in insertion order.
func (c *Config) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Len returns the number of parameters.
func (c *Config) Len() int {
	return len(c.keys)
}

// ParseJSON decodes a JSON object into a Config, preserving the key order
// of the document. Nested objects become nested Configs. JSON arrays have
// no comparable representation and are rejected as malformed.
func ParseJSON(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, review.NewMalformedConfigError("", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, review.NewMalformedConfigError("", fmt.Errorf("config document is not a JSON object"))
	}
	return parseObject(dec)
}

func parseObject(dec *json.Decoder) (*Config, error) {
	cfg := NewConfig()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, review.NewMalformedConfigError("", err)
		}
		key := tok.(string)

		v, err := parseValue(dec, key)
		if err != nil {
			return nil, err
		}
		cfg.Set(key, v)
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, review.NewMalformedConfigError("", err)
	}
	return cfg, nil
}

func parseValue(dec *json.Decoder, key string) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, review.NewMalformedConfigError(key, err)
	}
	switch t := tok.(type) {
	case json.Delim:
		if t == '{' {
			nested, err := parseObject(dec)
			if err != nil {
				return Value{}, err
			}
			return Nested(nested), nil
		}
		return Value{}, review.NewMalformedConfigError(key, fmt.Errorf("arrays are not comparable values"))
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, review.NewMalformedConfigError(key, err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		// JSON null reads back as an absent parameter would: empty string.
		return String(""), nil
	default:
		return Value{}, review.NewMalformedConfigError(key, fmt.Errorf("unsupported value type %T", tok))
	}
}

// MarshalJSON encodes the Config as a JSON object in key order.
func (c *Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		v := c.values[key]
		switch v.kind {
		case KindNested:
			nested, err := v.nested.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(nested)
		case KindNumber:
			buf.WriteString(v.Canonical())
		case KindBool:
			buf.WriteString(v.Canonical())
		default:
			s, err := json.Marshal(v.str)
			if err != nil {
				return nil, err
			}
			buf.Write(s)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the Config, replacing its
// contents.
func (c *Config) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// SortedCopy returns a copy of the Config with keys in lexical order.
// Useful for deterministic output where insertion order is synthetic.
func (c *Config) SortedCopy() *Config {
	out := NewConfig()
	keys := c.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		out.Set(k, c.values[k])
	}
	return out
}
