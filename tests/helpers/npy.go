package helpers

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// SequenceValue is the value stored by WriteSequence for the given
// native frame, joint and axis.
func SequenceValue(frame, joint, axis int) float64 {
	return float64(frame*1000+joint*10+axis) / 100
}

// LibraryValue is the value stored by WriteLibrary for the given
// row, joint and axis. Right hand values are negated.
func LibraryValue(row, joint, axis int, right bool) float64 {
	v := float64(row*100+joint*3+axis) / 10
	if right {
		return -v
	}

	return v
}

// WriteSequence writes an AMASS style .npz containing 'frames' frames
// of 'joints' joint rotations, and the frame rate provided.
func WriteSequence(t *testing.T, path string, rate float64, frames, joints int) {
	data := make([]float64, 0, frames*joints*3)
	for f := 0; f < frames; f++ {
		for j := 0; j < joints; j++ {
			for a := 0; a < 3; a++ {
				data = append(data, SequenceValue(f, j, a))
			}
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	archive := zip.NewWriter(out)
	poses, err := archive.Create("poses.npy")
	require.NoError(t, err)
	require.NoError(t, npyio.Write(poses, mat.NewDense(frames, joints*3, data)))

	frameRate, err := archive.Create("mocap_framerate.npy")
	require.NoError(t, err)
	require.NoError(t, npyio.Write(frameRate, rate))

	require.NoError(t, archive.Close())
}

// WriteLibrary writes a MANO style (rows, 45) pose table to the path
// provided, using LibraryValue for each element.
func WriteLibrary(t *testing.T, path string, rows int, right bool) {
	data := make([]float64, 0, rows*45)
	for r := 0; r < rows; r++ {
		for j := 0; j < 15; j++ {
			for a := 0; a < 3; a++ {
				data = append(data, LibraryValue(r, j, a, right))
			}
		}
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, npyio.Write(out, mat.NewDense(rows, 45, data)))
}

// WritePoseLibrary writes both MANO tables in to the layout produced
// by extracting the MANO archive in to dir.
func WritePoseLibrary(t *testing.T, dir string, rows int) {
	base := filepath.Join(dir, "mano_poses_v1_0")
	WriteLibrary(t, filepath.Join(base, "handsOnly_REGISTRATIONS_r_lm___POSES___L.npy"), rows, false)
	WriteLibrary(t, filepath.Join(base, "handsOnly_REGISTRATIONS_r_lm___POSES___R.npy"), rows, true)
}
