package reconcile_test

import (
	"path/filepath"
	"testing"

	"github.com/hbomb79/synthmocap/internal/reconcile"
	"github.com/stretchr/testify/assert"
)

func Test_Family_Candidates(t *testing.T) {
	table := reconcile.FamilyTable(reconcile.DefaultFamilies)
	root := filepath.FromSlash("/data")

	mosh, err := table.Lookup("MoSh_MPI_MoSh")
	assert.NoError(t, err)

	ref := reconcile.BodyRef{Identifier: "MoSh_MPI_MoSh", Path: "subjectA/seqB", Frame: 5}
	assert.Equal(t, []string{
		filepath.Join(root, "MoSh", "MPI_mosh", "subjectA", "seqB_poses.npz"),
		filepath.Join(root, "MoSh", "MPI_mosh", "subjectA", "seqB_poses_poses.npz"),
	}, mosh.Candidates(root, ref))

	ref = reconcile.BodyRef{Identifier: "MoSh_MPI_MoSh", Path: "Data/moshpp_fits_SMPL/00008/misc.npz"}
	assert.Equal(t,
		filepath.Join(root, "MoSh", "MPI_mosh", "00008", "misc_poses.npz"),
		mosh.Candidates(root, ref)[0],
		"logical root should be replaced by the archive root",
	)

	ref = reconcile.BodyRef{Identifier: "MoSh_MPI_MoSh", Path: "Data/moshpp_fits_SMPL/00008/misc.pkl"}
	assert.Equal(t,
		filepath.Join(root, "MoSh", "MPI_mosh", "00008", "misc_poses.npz"),
		mosh.Candidates(root, ref)[0],
		"any extension on the referenced name should be replaced",
	)

	ref = reconcile.BodyRef{Identifier: "MoSh_MPI_MoSh", Path: "subject.v2/seqB"}
	assert.Equal(t,
		filepath.Join(root, "MoSh", "MPI_mosh", "subject.v2", "seqB_poses.npz"),
		mosh.Candidates(root, ref)[0],
		"dots in directory names are not extensions",
	)

	limits, err := table.Lookup("MoSh_MPI_PoseLimits")
	assert.NoError(t, err)

	ref = reconcile.BodyRef{Identifier: "MoSh_MPI_PoseLimits", Path: "Data/moshpp_fits_SMPL/03099/lar1.npz"}
	assert.Equal(t, []string{
		filepath.Join(root, "PosePrior", "MPI_Limits", "03099", "lar1_poses.npz"),
	}, limits.Candidates(root, ref), "pose limits family has no doubled-suffix quirk")
}

func Test_FamilyTable_UnknownIdentifier(t *testing.T) {
	table := reconcile.FamilyTable(reconcile.DefaultFamilies)

	_, err := table.Lookup("Other_Dataset")
	assert.ErrorIs(t, err, reconcile.ErrUnknownFamily)

	_, err = table.Lookup("MoSh_MPI_Mosh")
	assert.ErrorIs(t, err, reconcile.ErrUnknownFamily, "identifiers are matched exactly")
	assert.Contains(t, err.Error(), `"MoSh_MPI_MoSh"`, "error should suggest the closest known family")

	_, err = reconcile.FamilyTable(nil).Lookup("MoSh_MPI_MoSh")
	assert.ErrorIs(t, err, reconcile.ErrUnknownFamily)
}
