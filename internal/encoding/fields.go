package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SplitUnknown returns the members of a JSON object other than the known keys,
// or nil when there are none
func SplitUnknown(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// MergeUnknown encodes v and adds the preserved members back. Members of v win on conflict.
func MergeUnknown(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := marshalCompact(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, fmt.Errorf("failed to merge fields: %w", err)
	}
	for k, raw := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = raw
		}
	}
	return marshalCompact(merged)
}

// marshalCompact is json.Marshal without HTML escaping
func marshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// PatchMember sets one top-level member of a JSON object and leaves every other byte
// of data as it was. An existing member is replaced in place; a missing one is
// appended as the last member.
func PatchMember(data []byte, key string, v interface{}) ([]byte, error) {
	value, err := marshalCompact(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("document is not a JSON object")
	}

	members := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		members++
		if name != key {
			continue
		}

		end := int(dec.InputOffset())
		start := end - len(raw)
		out := make([]byte, 0, len(data)-len(raw)+len(value))
		out = append(out, data[:start]...)
		out = append(out, value...)
		return append(out, data[end:]...), nil
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	closing := int(dec.InputOffset()) - 1
	last := len(bytes.TrimRight(data[:closing], " \t\r\n"))

	name, err := marshalCompact(key)
	if err != nil {
		return nil, err
	}
	var member bytes.Buffer
	if members > 0 {
		member.WriteByte(',')
	}
	member.WriteString("\n  ")
	member.Write(name)
	member.WriteString(": ")
	member.Write(value)

	out := make([]byte, 0, len(data)+member.Len()+1)
	out = append(out, data[:last]...)
	out = append(out, member.Bytes()...)
	out = append(out, '\n')
	return append(out, data[closing:]...), nil
}
