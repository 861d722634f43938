package reconcile

import (
	"fmt"
	"path/filepath"

	"gorgonia.org/tensor"
)

type Side int

const (
	Left Side = iota
	Right
)

const (
	// PoseLibraryDir is the directory the MANO pose archive is
	// extracted in to.
	PoseLibraryDir = "manoposesv10"

	leftLibraryFile  = "mano_poses_v1_0/handsOnly_REGISTRATIONS_r_lm___POSES___L.npy"
	rightLibraryFile = "mano_poses_v1_0/handsOnly_REGISTRATIONS_r_lm___POSES___R.npy"
)

// PoseLibrary holds the left and right hand pose tables. Each row is a
// single hand pose of HandJointCount rotations. The library is
// read-only once constructed.
type PoseLibrary struct {
	left  *tensor.Dense
	right *tensor.Dense
}

// NewPoseLibrary constructs a library from two (rows, 45) tables.
func NewPoseLibrary(left, right *tensor.Dense) (*PoseLibrary, error) {
	l, err := reshapeHands(left)
	if err != nil {
		return nil, fmt.Errorf("left hand library: %w", err)
	}

	r, err := reshapeHands(right)
	if err != nil {
		return nil, fmt.Errorf("right hand library: %w", err)
	}

	return &PoseLibrary{left: l, right: r}, nil
}

// LoadPoseLibrary reads the MANO pose library from the directory the
// archive was extracted in to.
func LoadPoseLibrary(dir string) (*PoseLibrary, error) {
	left, err := loadNpy(filepath.Join(dir, filepath.FromSlash(leftLibraryFile)))
	if err != nil {
		return nil, err
	}

	right, err := loadNpy(filepath.Join(dir, filepath.FromSlash(rightLibraryFile)))
	if err != nil {
		return nil, err
	}

	return NewPoseLibrary(left, right)
}

// Rows returns the number of poses held for the side provided.
func (lib *PoseLibrary) Rows(side Side) int {
	return lib.table(side).Shape()[0]
}

// Hand returns the pose at the row provided, as HandJointCount
// rotations.
func (lib *PoseLibrary) Hand(side Side, row int) ([][RotationSize]float64, error) {
	if row < 0 || row >= lib.Rows(side) {
		return nil, fmt.Errorf("%w: %s row %d of %d", ErrRowOutOfRange, side, row, lib.Rows(side))
	}

	return rotations(lib.table(side), row, HandJointCount)
}

func (lib *PoseLibrary) table(side Side) *tensor.Dense {
	if side == Left {
		return lib.left
	}

	return lib.right
}

func reshapeHands(t *tensor.Dense) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 || shape[1] != HandJointCount*RotationSize {
		return nil, fmt.Errorf("%w: shape %v, expected (rows, %d)", ErrMalformedLibrary, shape, HandJointCount*RotationSize)
	}

	reshaped := t.ShallowClone()
	if err := reshaped.Reshape(shape[0], HandJointCount, RotationSize); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedLibrary, err.Error())
	}

	return reshaped, nil
}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
