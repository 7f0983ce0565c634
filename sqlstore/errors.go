package sqlstore

import "github.com/pkg/errors"

// Sentinel errors of the store. Callers distinguish them with errors.Is
// (wrapping via errors.Wrapf preserves the chain).
var (
	// ErrUnknownScheme is a configuration error: the connection URI names
	// no known driver.
	ErrUnknownScheme = errors.New("unknown connection URI scheme")

	// ErrNameTooLong rejects node names longer than the UNIQUE-index limit.
	ErrNameTooLong = errors.New("node name exceeds maximum of 2700 bytes")

	// ErrArityTooLarge rejects links wider than the UNIQUE-index limit.
	ErrArityTooLarge = errors.New("link arity exceeds maximum of 330")

	// ErrUnknownTruthType is an IO error: a read row carries an
	// unrecognized tv_type tag.
	ErrUnknownTruthType = errors.New("unknown truth value type")

	// ErrUnknownValueType is an IO error: a Value row carries an
	// unrecognized type tag, or the requested Value row is absent.
	ErrUnknownValueType = errors.New("unknown value type")

	// ErrMissingKey is an IO error: a Valuation row references a key UUID
	// which cannot be resolved to an atom.
	ErrMissingKey = errors.New("valuation references a missing key atom")

	// ErrNoSuchAtom is an IO error: a required atom row was absent.
	ErrNoSuchAtom = errors.New("no such atom")

	// ErrTypemapOverflow is an invariant violation: more distinct types
	// than the type map can hold.
	ErrTypemapOverflow = errors.New("type map overflow")

	// ErrUnknownDBType is an IO error: the database holds atoms of a type
	// this process has no registration for.
	ErrUnknownDBType = errors.New("database type has no runtime registration")
)
