package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hbomb79/synthmocap/pkg/logger"
)

var log = logger.Get("Reconciler")

const (
	recordPattern       = "*.json"
	defaultCacheEntries = 64
)

type (
	// Config controls where the reconciler looks for motion sequences.
	Config struct {
		// SequenceRoot is the directory the AMASS archives were
		// extracted in to (each family's ArchiveDir is relative to this).
		SequenceRoot string

		// Families maps reference identifiers to archive layouts.
		// DefaultFamilies is used when empty.
		Families []Family

		// CacheEntries bounds the number of decoded sequences kept
		// in memory. Defaults to 64 when zero; negative disables caching.
		CacheEntries int
	}

	// Summary describes the outcome of a reconciliation run.
	Summary struct {
		Records   int
		Rewritten int
		Body      int
		LeftHand  int
		RightHand int
	}

	// Reconciler resolves the symbolic pose references in metadata
	// records against the motion sequences and pose library it was
	// constructed with.
	Reconciler struct {
		config    Config
		families  FamilyTable
		library   *PoseLibrary
		sequences *sequenceCache
	}
)

// New constructs a Reconciler. The pose library is shared by every
// record and must not be modified while the reconciler is in use.
func New(config Config, library *PoseLibrary) *Reconciler {
	families := config.Families
	if len(families) == 0 {
		families = DefaultFamilies
	}

	entries := config.CacheEntries
	if entries == 0 {
		entries = defaultCacheEntries
	}

	return &Reconciler{
		config:    config,
		families:  FamilyTable(families),
		library:   library,
		sequences: newSequenceCache(entries),
	}
}

// Run reconciles every record directly inside the directory provided.
// Records are processed one at a time; the first failure aborts the
// run, leaving records already processed in their rewritten state.
func (r *Reconciler) Run(ctx context.Context, dir string) (*Summary, error) {
	paths, err := filepath.Glob(filepath.Join(dir, recordPattern))
	if err != nil {
		return nil, err
	}

	log.Emit(logger.NEW, "Reconciling %d records in %s\n", len(paths), dir)
	summary := &Summary{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		resolved, err := r.ReconcileFile(path)
		if err != nil {
			return summary, err
		}

		summary.Records++
		if resolved.Any() {
			summary.Rewritten++
		}
		summary.add(resolved)
	}

	log.Emit(logger.SUCCESS, "Reconciled %d records (%d rewritten)\n", summary.Records, summary.Rewritten)
	return summary, nil
}

// ReconcileFile resolves the record at the path provided and, if any
// references were resolved, writes it back to the same path.
func (r *Reconciler) ReconcileFile(path string) (Resolved, error) {
	record, err := LoadRecord(path)
	if err != nil {
		return Resolved{}, err
	}

	if !record.HasReferences() {
		log.Emit(logger.VERBOSE, "%s has no symbolic references\n", record)
		return Resolved{}, nil
	}

	resolved, err := r.ResolveRecord(record)
	if err != nil {
		return resolved, err
	}

	if err := record.Save(); err != nil {
		return resolved, fmt.Errorf("failed to save %s: %w", path, err)
	}

	log.Emit(logger.DEBUG, "Resolved %s %s\n", record, resolved)
	return resolved, nil
}

// Resolved records which pose ranges of a record were replaced.
type Resolved struct {
	Body      bool
	LeftHand  bool
	RightHand bool
}

func (res Resolved) Any() bool { return res.Body || res.LeftHand || res.RightHand }

func (res Resolved) String() string {
	return fmt.Sprintf("{body=%v left=%v right=%v}", res.Body, res.LeftHand, res.RightHand)
}

// ResolveRecord replaces every symbolic range of the records pose
// with numeric rotations. The root entry is never modified, and
// ranges whose anchor entry is already numeric are left alone.
func (r *Reconciler) ResolveRecord(record *Record) (Resolved, error) {
	var resolved Resolved
	if len(record.Pose) != PoseLength {
		return resolved, fmt.Errorf("%w: %s has %d pose entries", ErrMalformedRecord, record.Path, len(record.Pose))
	}

	if entry := record.Pose[BodyStart]; entry.IsRef() {
		if err := r.resolveBody(record, entry.Ref()); err != nil {
			return resolved, &ResolutionError{Path: record.Path, Index: BodyStart, Ref: entry.Ref(), Err: err}
		}
		resolved.Body = true
	}

	for _, hand := range []struct {
		side  Side
		start int
		flag  *bool
	}{
		{Left, LeftHandStart, &resolved.LeftHand},
		{Right, RightHandStart, &resolved.RightHand},
	} {
		entry := record.Pose[hand.start]
		if !entry.IsRef() {
			continue
		}

		if err := r.resolveHand(record, hand.side, hand.start, entry.Ref()); err != nil {
			return resolved, &ResolutionError{Path: record.Path, Index: hand.start, Ref: entry.Ref(), Err: err}
		}
		*hand.flag = true
	}

	return resolved, nil
}

func (r *Reconciler) resolveBody(record *Record, raw string) error {
	ref, err := ParseBodyRef(raw)
	if err != nil {
		return err
	}
	if ref.Mirrored {
		return fmt.Errorf("%w: %s", ErrMirroredUnsupported, ref)
	}

	family, err := r.families.Lookup(ref.Identifier)
	if err != nil {
		return err
	}

	seq, err := r.sequence(family, ref)
	if err != nil {
		return err
	}

	frame, err := seq.Frame(ref.Frame)
	if err != nil {
		return err
	}

	// The frames own root rotation is discarded; the record keeps its root.
	return writeRotations(record, BodyStart, frame[BodyStart:BodyJointCount])
}

func (r *Reconciler) resolveHand(record *Record, side Side, start int, raw string) error {
	if r.library == nil {
		return ErrNoPoseLibrary
	}

	ref, err := ParseHandRef(raw)
	if err != nil {
		return err
	}

	pose, err := r.library.Hand(side, ref.Row)
	if err != nil {
		return err
	}

	return writeRotations(record, start, pose)
}

// sequence locates and loads the sequence referenced, trying each of
// the families candidate file names in turn.
func (r *Reconciler) sequence(family Family, ref BodyRef) (*Sequence, error) {
	candidates := family.Candidates(r.config.SequenceRoot, ref)
	for _, path := range candidates {
		if seq := r.sequences.RetrieveItem(path); seq != nil {
			return seq, nil
		}

		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, err
		}

		seq, err := LoadSequence(path)
		if err != nil {
			return nil, err
		}

		r.sequences.PushItem(path, seq)
		return seq, nil
	}

	return nil, fmt.Errorf("%w: tried %v", ErrSequenceNotFound, candidates)
}

func writeRotations(record *Record, start int, rotations [][RotationSize]float64) error {
	for i, rot := range rotations {
		entry, err := Rotation(rot)
		if err != nil {
			return err
		}

		record.Pose[start+i] = entry
	}

	return nil
}

func (summary *Summary) add(res Resolved) {
	if res.Body {
		summary.Body++
	}
	if res.LeftHand {
		summary.LeftHand++
	}
	if res.RightHand {
		summary.RightHand++
	}
}
