package persist

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// CurrentFormatVersion is the only JSON catalog version this build reads.
const CurrentFormatVersion = 1

type envelopeHeader struct {
	FormatVersion *int `json:"formatVersion"`
}

// DecodeEnvelope checks the formatVersion of a JSON catalog document and
// returns the raw arrays stored under keys, in order. A missing key or a
// non-array value is a format error; an unknown version is unsupported.
func DecodeEnvelope(data []byte, keys ...string) ([]json.RawMessage, error) {
	var hdr envelopeHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, Errorf(NoLine, "malformed JSON: %v", err)
	}
	if hdr.FormatVersion == nil {
		return nil, Errorf(NoLine, "missing formatVersion")
	}
	if *hdr.FormatVersion != CurrentFormatVersion {
		return nil, Unsupportedf("formatVersion %d not supported (want %d)", *hdr.FormatVersion, CurrentFormatVersion)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, Errorf(NoLine, "malformed JSON: %v", err)
	}
	out := make([]json.RawMessage, len(keys))
	for i, key := range keys {
		raw, ok := fields[key]
		if !ok {
			return nil, Errorf(NoLine, "missing %q array", key)
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return nil, Errorf(NoLine, "%q is not an array", key)
		}
		out[i] = raw
	}
	return out, nil
}

// Section is one named array in a JSON catalog document.
type Section struct {
	Key   string
	Items any
}

// EncodeEnvelope writes {"formatVersion": 1, <sections>...} to w and flushes.
func EncodeEnvelope(w Writer, sections ...Section) error {
	var buf bytes.Buffer
	buf.WriteString("{\n  \"formatVersion\": 1")
	for _, s := range sections {
		raw, err := json.MarshalIndent(s.Items, "  ", "  ")
		if err != nil {
			return &Error{Status: StatusInternalError, Msg: err.Error(), Line: NoLine}
		}
		keyJSON, _ := json.Marshal(s.Key)
		buf.WriteString(",\n  ")
		buf.Write(keyJSON)
		buf.WriteString(": ")
		buf.Write(raw)
	}
	buf.WriteString("\n}\n")
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.Flush()
}
