package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// BodyJointCount is the number of SMPL-H body joints, including the root.
	BodyJointCount = 22
	// HandJointCount is the number of MANO joints per hand.
	HandJointCount = 15

	RootIndex      = 0
	BodyStart      = 1
	LeftHandStart  = BodyJointCount
	RightHandStart = LeftHandStart + HandJointCount
	PoseLength     = RightHandStart + HandJointCount

	// RotationSize is the number of values making up one joint rotation.
	RotationSize = 3
)

// PoseEntry is a single joint entry from a records pose. An entry
// is either a numeric rotation (kept verbatim so that untouched
// entries round-trip exactly) or a symbolic reference which must be
// resolved against one of the pose sources.
type PoseEntry struct {
	raw json.RawMessage
	ref string
}

// Rotation constructs a numeric pose entry from the axis-angle
// rotation provided. Non-finite values cannot be represented in
// JSON and are rejected.
func Rotation(r [RotationSize]float64) (PoseEntry, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return PoseEntry{}, fmt.Errorf("rotation %v cannot be encoded: %w", r, err)
	}

	return PoseEntry{raw: raw}, nil
}

func (e PoseEntry) IsRef() bool { return e.raw == nil }

func (e PoseEntry) Ref() string { return e.ref }

// Vector decodes the numeric rotation held by this entry. An error
// is returned for symbolic entries.
func (e PoseEntry) Vector() ([]float64, error) {
	if e.IsRef() {
		return nil, fmt.Errorf("pose entry %q is symbolic", e.ref)
	}

	var out []float64
	if err := json.Unmarshal(e.raw, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (e PoseEntry) MarshalJSON() ([]byte, error) {
	if e.IsRef() {
		return json.Marshal(e.ref)
	}

	return e.raw, nil
}

func (e *PoseEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var ref string
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return err
		}

		*e = PoseEntry{ref: ref}
		return nil
	}

	var vector []float64
	if err := json.Unmarshal(trimmed, &vector); err != nil {
		return fmt.Errorf("pose entry is neither a reference nor a numeric vector: %w", err)
	}

	*e = PoseEntry{raw: append(json.RawMessage(nil), trimmed...)}
	return nil
}

func (e PoseEntry) String() string {
	if e.IsRef() {
		return fmt.Sprintf("PoseEntry{ref=%s}", e.ref)
	}

	return fmt.Sprintf("PoseEntry{%s}", string(e.raw))
}
