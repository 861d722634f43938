package reconcile

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

const (
	// TargetFrameRate is the approximate rate the synthetic datasets
	// were rendered at. Frame indices in references address sequences
	// resampled to this rate.
	TargetFrameRate = 30.0

	posesMember     = "poses"
	frameRateMember = "mocap_framerate"
)

// Sequence is a motion capture sequence at its native capture rate.
type Sequence struct {
	FrameRate float64
	// Poses has shape (frames, joints, 3).
	Poses *tensor.Dense
}

// NewSequence constructs a sequence from a (frames, joints*3) pose
// table captured at the rate provided.
func NewSequence(frameRate float64, poses *tensor.Dense) (*Sequence, error) {
	shape := poses.Shape()
	if len(shape) != 2 || shape[1]%RotationSize != 0 {
		return nil, fmt.Errorf("%w: poses have shape %v, expected (frames, joints*3)", ErrMalformedSequence, shape)
	}
	if joints := shape[1] / RotationSize; joints < BodyJointCount {
		return nil, fmt.Errorf("%w: poses contain %d joints, expected at least %d", ErrMalformedSequence, joints, BodyJointCount)
	}

	reshaped := poses.ShallowClone()
	if err := reshaped.Reshape(shape[0], shape[1]/RotationSize, RotationSize); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedSequence, err.Error())
	}

	return &Sequence{FrameRate: frameRate, Poses: reshaped}, nil
}

// LoadSequence reads an AMASS style .npz sequence file.
func LoadSequence(path string) (*Sequence, error) {
	arrays, err := loadNpz(path, posesMember, frameRateMember)
	if err != nil {
		return nil, err
	}

	rate, err := scalar(arrays[frameRateMember])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedSequence, path, err.Error())
	}

	seq, err := NewSequence(rate, arrays[posesMember])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return seq, nil
}

// Step returns the number of native frames between consecutive
// resampled frames. Sequences captured below the target rate cannot
// be resampled and are rejected, rather than producing a step of zero.
func (seq *Sequence) Step() (int, error) {
	if math.IsNaN(seq.FrameRate) || math.IsInf(seq.FrameRate, 0) {
		return 0, fmt.Errorf("%w: rate %v", ErrUnsupportedFrameRate, seq.FrameRate)
	}

	step := int(math.Floor(seq.FrameRate / TargetFrameRate))
	if step < 1 {
		return 0, fmt.Errorf("%w: rate %v gives a step of %d", ErrUnsupportedFrameRate, seq.FrameRate, step)
	}

	return step, nil
}

// NumFrames is the number of native frames in the sequence.
func (seq *Sequence) NumFrames() int {
	return seq.Poses.Shape()[0]
}

// Frame returns the joint rotations of the resampled frame at the index
// provided, which is native frame index*step.
func (seq *Sequence) Frame(index int) ([][RotationSize]float64, error) {
	step, err := seq.Step()
	if err != nil {
		return nil, err
	}

	// Bounds are checked on the resampled index, as index*step may overflow.
	resampled := (seq.NumFrames() + step - 1) / step
	if index < 0 || index >= resampled {
		return nil, fmt.Errorf("%w: frame %d of %d resampled frames", ErrFrameOutOfRange, index, resampled)
	}

	return rotations(seq.Poses, index*step, seq.Poses.Shape()[1])
}

// rotations reads count joint rotations from row 'row' of a
// (rows, joints, 3) tensor.
func rotations(t *tensor.Dense, row int, count int) ([][RotationSize]float64, error) {
	out := make([][RotationSize]float64, count)
	for joint := 0; joint < count; joint++ {
		for axis := 0; axis < RotationSize; axis++ {
			v, err := t.At(row, joint, axis)
			if err != nil {
				return nil, err
			}

			out[joint][axis] = v.(float64)
		}
	}

	return out, nil
}

func scalar(t *tensor.Dense) (float64, error) {
	if t.Shape().TotalSize() != 1 {
		return 0, fmt.Errorf("expected a scalar, found shape %v", t.Shape())
	}

	v, err := t.At(make([]int, t.Dims())...)
	if err != nil {
		return 0, err
	}

	return v.(float64), nil
}
