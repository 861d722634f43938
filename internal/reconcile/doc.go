// Package reconcile resolves the symbolic pose references found in
// SynthMoCap metadata records.
//
// Each record carries a 52 entry pose (root, 21 body joints, and 15
// joints per hand). When a dataset is published, the parts of the pose
// which came from licensed sources are replaced with references:
//
//   - pose[1] may reference a frame of an AMASS motion sequence, which
//     stands for the whole body range [1, 22).
//   - pose[22] and pose[37] may reference a row of the MANO left/right
//     hand pose libraries, standing for [22, 37) and [37, 52).
//
// The Reconciler replaces those references with the rotations from the
// downloaded archives and writes each record back in place.
package reconcile
