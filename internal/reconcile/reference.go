package reconcile

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// BodyRef is a reference to a single frame of a motion sequence,
	// encoded as '<identifier>/<path>_<frame>_<mirrored>'.
	BodyRef struct {
		// Identifier is the leading path segment, naming the
		// family of archives the sequence belongs to.
		Identifier string
		// Path is the remainder of the sequence path, relative to
		// the identifier, with the frame and mirror tokens removed.
		Path     string
		Frame    int
		Mirrored bool
	}

	// HandRef is a reference to a row of a pose library, encoded
	// as '<prefix>_<row>'.
	HandRef struct {
		Prefix string
		Row    int
	}
)

// ParseBodyRef parses a motion sequence reference. The trailing two
// underscore-delimited tokens are the frame index and the mirror flag.
func ParseBodyRef(ref string) (BodyRef, error) {
	mirrorAt := strings.LastIndex(ref, "_")
	if mirrorAt < 0 {
		return BodyRef{}, fmt.Errorf("%w: %q has no mirror flag", ErrMalformedReference, ref)
	}
	frameAt := strings.LastIndex(ref[:mirrorAt], "_")
	if frameAt < 0 {
		return BodyRef{}, fmt.Errorf("%w: %q has no frame index", ErrMalformedReference, ref)
	}

	mirrored, err := strconv.ParseBool(ref[mirrorAt+1:])
	if err != nil {
		return BodyRef{}, fmt.Errorf("%w: %q has invalid mirror flag: %s", ErrMalformedReference, ref, err.Error())
	}

	frame, err := strconv.Atoi(ref[frameAt+1 : mirrorAt])
	if err != nil || frame < 0 {
		return BodyRef{}, fmt.Errorf("%w: %q has invalid frame index", ErrMalformedReference, ref)
	}

	identifier, path, ok := strings.Cut(ref[:frameAt], "/")
	if !ok || identifier == "" || path == "" {
		return BodyRef{}, fmt.Errorf("%w: %q has no sequence path", ErrMalformedReference, ref)
	}

	return BodyRef{Identifier: identifier, Path: path, Frame: frame, Mirrored: mirrored}, nil
}

// ParseHandRef parses a pose library reference. The row index is the
// final underscore-delimited token.
func ParseHandRef(ref string) (HandRef, error) {
	at := strings.LastIndex(ref, "_")
	if at < 0 {
		return HandRef{}, fmt.Errorf("%w: %q has no row index", ErrMalformedReference, ref)
	}

	row, err := strconv.Atoi(ref[at+1:])
	if err != nil || row < 0 {
		return HandRef{}, fmt.Errorf("%w: %q has invalid row index", ErrMalformedReference, ref)
	}

	return HandRef{Prefix: ref[:at], Row: row}, nil
}

func (ref BodyRef) String() string {
	mirror := 0
	if ref.Mirrored {
		mirror = 1
	}

	return fmt.Sprintf("%s/%s_%d_%d", ref.Identifier, ref.Path, ref.Frame, mirror)
}
