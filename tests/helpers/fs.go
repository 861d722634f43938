package helpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// RecordPose returns a pose of 52 numeric entries where every
// component of entry i is equal to -(i+1). Tests replace individual
// entries with string references as required.
func RecordPose() []any {
	pose := make([]any, 52)
	for i := range pose {
		v := -float64(i + 1)
		pose[i] = []float64{v, v, v}
	}

	return pose
}

// WriteRecord writes a metadata record containing the pose provided,
// alongside some additional fields which must survive reconciliation.
func WriteRecord(t *testing.T, path string, pose []any) {
	record := map[string]any{
		"camera":   map[string]any{"fov": 60.0, "resolution": []int{512, 512}},
		"identity": "subject_0001",
		"pose":     pose,
	}

	content, err := json.MarshalIndent(record, "", "    ")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// ReadPose decodes the pose of the record at the path provided.
func ReadPose(t *testing.T, path string) []json.RawMessage {
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var record struct {
		Pose []json.RawMessage `json:"pose"`
	}
	require.NoError(t, json.Unmarshal(content, &record))
	return record.Pose
}

// ReadVector decodes a single numeric pose entry.
func ReadVector(t *testing.T, raw json.RawMessage) []float64 {
	var out []float64
	require.NoError(t, json.Unmarshal(raw, &out), "expected numeric pose entry, found %s", string(raw))
	return out
}
