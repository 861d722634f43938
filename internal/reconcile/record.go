package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

const (
	poseField   = "pose"
	indentation = "    "
)

// Record is a single per-sample metadata file. The pose is decoded
// for reconciliation; every other field is held verbatim, in the order
// it appeared in the source file, so that saving the record only
// changes the pose.
type Record struct {
	Path string
	Pose []PoseEntry

	keys   []string
	fields map[string]json.RawMessage
}

// LoadRecord reads and decodes the metadata file at the path provided.
// The file must contain a JSON object with a 'pose' array of exactly
// PoseLength entries.
func LoadRecord(path string) (*Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	record, err := DecodeRecord(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedRecord, path, err.Error())
	}

	record.Path = path
	return record, nil
}

// DecodeRecord decodes the JSON object provided in to a Record, without
// an associated path.
func DecodeRecord(content []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, found %v", tok)
	}

	record := &Record{fields: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}

		key := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}

		if _, seen := record.fields[key]; !seen {
			record.keys = append(record.keys, key)
		}
		record.fields[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	rawPose, ok := record.fields[poseField]
	if !ok {
		return nil, fmt.Errorf("missing %q field", poseField)
	}
	if err := json.Unmarshal(rawPose, &record.Pose); err != nil {
		return nil, fmt.Errorf("field %q: %w", poseField, err)
	}
	if len(record.Pose) != PoseLength {
		return nil, fmt.Errorf("field %q has %d entries, expected %d", poseField, len(record.Pose), PoseLength)
	}

	return record, nil
}

// Encode serializes the record using four-space indentation, keeping
// the original field order.
func (record *Record) Encode() ([]byte, error) {
	pose, err := json.Marshal(record.Pose)
	if err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, key := range record.keys {
		if i > 0 {
			compact.WriteByte(',')
		}

		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		compact.Write(encodedKey)
		compact.WriteByte(':')

		if key == poseField {
			compact.Write(pose)
		} else {
			compact.Write(record.fields[key])
		}
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", indentation); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// Save overwrites the file the record was loaded from. The write is
// not atomic.
func (record *Record) Save() error {
	content, err := record.Encode()
	if err != nil {
		return err
	}

	return os.WriteFile(record.Path, content, 0o644)
}

// HasReferences returns true if any of the anchor entries of the
// pose are symbolic.
func (record *Record) HasReferences() bool {
	for _, idx := range []int{BodyStart, LeftHandStart, RightHandStart} {
		if record.Pose[idx].IsRef() {
			return true
		}
	}

	return false
}

func (record *Record) String() string {
	return fmt.Sprintf("Record{path=%s}", record.Path)
}
