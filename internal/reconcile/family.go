package reconcile

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

const sequenceExt = ".npz"

// Family describes how motion sequence references belonging to one
// archive map on to the files extracted from that archive.
//
// References name sequences by the path used when the dataset was
// generated (e.g. 'MoSh_MPI_MoSh/Data/moshpp_fits_SMPL/<subject>/<seq>.npz'),
// whereas the published archives use a different root directory and
// append a suffix to each file name ('MoSh/MPI_mosh/<subject>/<seq>_poses.npz').
type Family struct {
	// Identifier is the leading segment of references belonging to this family.
	Identifier string
	// ArchiveDir is the directory the archive was extracted in to, relative
	// to the sequence root.
	ArchiveDir string
	// LogicalRoot is the path prefix used by references, which is
	// replaced by ArchiveRoot. References without this prefix are
	// placed directly under ArchiveRoot.
	LogicalRoot string
	// ArchiveRoot is the top-level directory inside the extracted archive.
	ArchiveRoot string
	// Suffix is appended to the sequence name to form the file name.
	Suffix string
	// Quirks are alternative suffixes tried, in order, when no file
	// with Suffix exists. Some upstream files carry a doubled suffix.
	Quirks []string
}

// DefaultFamilies are the AMASS archives referenced by the SynthMoCap
// body and hand datasets.
var DefaultFamilies = []Family{
	{
		Identifier:  "MoSh_MPI_MoSh",
		ArchiveDir:  "MoSh",
		LogicalRoot: "Data/moshpp_fits_SMPL",
		ArchiveRoot: "MPI_mosh",
		Suffix:      "_poses",
		Quirks:      []string{"_poses_poses"},
	},
	{
		Identifier:  "MoSh_MPI_PoseLimits",
		ArchiveDir:  "PosePrior",
		LogicalRoot: "Data/moshpp_fits_SMPL",
		ArchiveRoot: "MPI_Limits",
		Suffix:      "_poses",
	},
}

// Candidates returns the file paths, in the order they should be
// tried, at which the sequence referenced may be found. Paths are
// rooted at the directory provided. Any extension on the referenced
// name is replaced, so 'misc.pkl' and 'misc.npz' locate the same file.
func (family Family) Candidates(root string, ref BodyRef) []string {
	rel := path.Clean(ref.Path)
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if family.LogicalRoot != "" {
		rel = strings.TrimPrefix(rel, family.LogicalRoot+"/")
	}

	base := filepath.Join(root, family.ArchiveDir, family.ArchiveRoot, filepath.FromSlash(rel))
	candidates := make([]string, 0, 1+len(family.Quirks))
	for _, suffix := range append([]string{family.Suffix}, family.Quirks...) {
		candidates = append(candidates, base+suffix+sequenceExt)
	}

	return candidates
}

// FamilyTable resolves reference identifiers to their Family.
type FamilyTable []Family

// Lookup finds the family for the identifier provided. If no family
// matches, the error returned names the most similar known identifier.
func (table FamilyTable) Lookup(identifier string) (Family, error) {
	for _, family := range table {
		if family.Identifier == identifier {
			return family, nil
		}
	}

	if closest := table.closest(identifier); closest != "" {
		return Family{}, fmt.Errorf("%w %q (closest known family is %q)", ErrUnknownFamily, identifier, closest)
	}

	return Family{}, fmt.Errorf("%w %q", ErrUnknownFamily, identifier)
}

func (table FamilyTable) closest(identifier string) string {
	metric := metrics.NewLevenshtein()
	metric.CaseSensitive = false

	best, bestScore := "", 0.0
	for _, family := range table {
		if score := strutil.Similarity(identifier, family.Identifier, metric); score > bestScore {
			best, bestScore = family.Identifier, score
		}
	}

	return best
}
