package sqlstore

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
	"github.com/shadowridgedev/atomspace/metrics"
)

// VUID is the persistent identifier of a Value row. VUIDs are allocated
// monotonically and are independent of the atom UUID namespace.
type VUID uint64

// allocVUID issues the next value identifier.
func (s *Store) allocVUID() VUID {
	s.nextVUID.CompareAndSwap(0, 1)
	return VUID(s.nextVUID.Add(1) - 1)
}

// StoreValue persists |v| as a fresh Value row and returns its VUID. A
// LinkValue is stored depth-first: each referenced Value is written before
// the parent row that lists it. Value rows are immutable once written.
func (s *Store) StoreValue(v atom.Value) (VUID, error) {
	if err := s.setupTypemap(); err != nil {
		return 0, err
	}

	var vuid = s.allocVUID()
	var col, lit, err = s.valueColumnLiteral(v)
	if err != nil {
		return 0, err
	}
	var dbType, ok = s.tmap.storingCode(v.ValueType())
	if !ok {
		return 0, errors.Errorf("value type %d has no storing map entry", v.ValueType())
	}

	var rp = response{store: s}
	defer rp.release()

	if err = rp.exec(fmt.Sprintf(
		"INSERT INTO \"Values\" (vuid, type, %s) VALUES (%d, %d, %s);",
		col, vuid, dbType, lit)); err != nil {
		return 0, err
	}
	metrics.ValueStoresTotal.Inc()
	return vuid, nil
}

// valueColumnLiteral renders |v| as its typed column name and SQL literal.
// LinkValue children are stored as a side effect.
func (s *Store) valueColumnLiteral(v atom.Value) (string, string, error) {
	switch vv := v.(type) {
	case atom.FloatValue:
		return "floatvalue", "'" + formatFloatArray(vv) + "'", nil
	case atom.StringValue:
		return "stringvalue", "'" + escapeSingle(formatStringArray(vv)) + "'", nil
	case atom.LinkValue:
		var children = make([]atom.UUID, len(vv))
		for i, c := range vv {
			var cv, err = s.StoreValue(c)
			if err != nil {
				return "", "", err
			}
			children[i] = atom.UUID(cv)
		}
		return "linkvalue", "'" + formatUUIDArray(children) + "'", nil
	default:
		return "", "", errors.Wrapf(ErrUnknownValueType, "%T", v)
	}
}

// escapeSingle doubles single quotes for embedding in a SQL string literal.
func escapeSingle(s string) string { return strings.ReplaceAll(s, "'", "''") }

// StoreValuation binds |v| to |host| under |key|, replacing any prior
// binding. The delete of the old Valuation (cascading through its child
// Values) and the insert of the new one run in a single transaction, so
// concurrent readers always observe either the old or the new binding.
func (s *Store) StoreValuation(key, host *atom.Atom, v atom.Value) error {
	if err := s.setupTypemap(); err != nil {
		return err
	}

	var kuuid, err = s.getUUID(key)
	if err != nil {
		return err
	}
	auuid, err := s.getUUID(host)
	if err != nil {
		return err
	}

	// The new row's children must exist before the transaction, since
	// valueColumnLiteral writes them through its own connection.
	col, lit, err := s.valueColumnLiteral(v)
	if err != nil {
		return err
	}
	var dbType, ok = s.tmap.storingCode(v.ValueType())
	if !ok {
		return errors.Errorf("value type %d has no storing map entry", v.ValueType())
	}

	var rp = response{store: s}
	defer rp.release()

	if err = rp.exec("BEGIN;"); err != nil {
		return err
	}
	if err = s.deleteValuationTxn(&rp, kuuid, auuid); err != nil {
		return rollback(&rp, err)
	}
	if err = rp.exec(fmt.Sprintf(
		"INSERT INTO Valuations (key, atom, type, %s) VALUES (%d, %d, %d, %s);",
		col, kuuid, auuid, dbType, lit)); err != nil {
		return rollback(&rp, errors.Wrapf(err, "inserting valuation (key %d, atom %d)", kuuid, auuid))
	}
	return rp.exec("COMMIT;")
}

// rollback abandons the response's open transaction, so its connection does
// not return to the pool mid-transaction. The original error is preserved.
func rollback(rp *response, err error) error {
	_ = rp.exec("ROLLBACK;")
	return err
}

// DeleteValuation removes the (key, host) binding and its Value tree.
func (s *Store) DeleteValuation(key, host *atom.Atom) error {
	var kuuid = s.tlb.GetUUID(key)
	var auuid = s.tlb.GetUUID(host)

	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec("BEGIN;"); err != nil {
		return err
	}
	if err := s.deleteValuationTxn(&rp, kuuid, auuid); err != nil {
		return rollback(&rp, err)
	}
	return rp.exec("COMMIT;")
}

// deleteValuationTxn deletes the (key, atom) Valuation row, if any, within
// the caller's open transaction. A LinkValue binding cascades through its
// child Value rows first: without the cascade, garbage accumulates in the
// Values table.
func (s *Store) deleteValuationTxn(rp *response, kuuid, auuid atom.UUID) error {
	if err := rp.exec(fmt.Sprintf(
		"SELECT * FROM Valuations WHERE key = %d AND atom = %d;", kuuid, auuid)); err != nil {
		return err
	}
	rp.vtype = 0
	if err := rp.rs.ForEachRow(rp.rowValue); err != nil {
		return err
	}
	if rp.vtype == 0 {
		return nil // No prior binding.
	}

	if s.tmap.loadingType(rp.vtype) == atom.TLinkValue {
		var children, err = parseUUIDArray(rp.lnkval)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err = s.deleteValueTxn(rp, VUID(c)); err != nil {
				return err
			}
		}
	}
	return rp.exec(fmt.Sprintf(
		"DELETE FROM Valuations WHERE key = %d AND atom = %d;", kuuid, auuid))
}

// DeleteValue removes the Value row |vuid|, recursing through LinkValue
// children first.
func (s *Store) DeleteValue(vuid VUID) error {
	var rp = response{store: s}
	defer rp.release()
	return s.deleteValueTxn(&rp, vuid)
}

func (s *Store) deleteValueTxn(rp *response, vuid VUID) error {
	if err := rp.exec(fmt.Sprintf("SELECT * FROM \"Values\" WHERE vuid = %d;", vuid)); err != nil {
		return err
	}
	rp.vtype = 0
	if err := rp.rs.ForEachRow(rp.rowValue); err != nil {
		return err
	}

	if s.tmap.loadingType(rp.vtype) == atom.TLinkValue {
		var children, err = parseUUIDArray(rp.lnkval)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err = s.deleteValueTxn(rp, VUID(c)); err != nil {
				return err
			}
		}
	}

	if err := rp.exec(fmt.Sprintf("DELETE FROM \"Values\" WHERE vuid = %d;", vuid)); err != nil {
		return err
	}
	metrics.ValueDeletesTotal.Inc()
	return nil
}

// GetValue fetches the Value stored under |vuid|. LinkValues are fetched
// recursively.
func (s *Store) GetValue(vuid VUID) (atom.Value, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var v, err = s.doGetValue(fmt.Sprintf("SELECT * FROM \"Values\" WHERE vuid = %d;", vuid))
	return v, errors.Wrapf(err, "value %d", vuid)
}

// GetValuation fetches the Value bound to |host| under |key|. A missing
// binding returns (nil, nil).
func (s *Store) GetValuation(key, host *atom.Atom) (atom.Value, error) {
	if err := s.setupTypemap(); err != nil {
		return nil, err
	}
	var kuuid = s.tlb.GetUUID(key)
	var auuid = s.tlb.GetUUID(host)
	if kuuid == atom.InvalidUUID || auuid == atom.InvalidUUID {
		return nil, nil
	}

	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(fmt.Sprintf(
		"SELECT * FROM Valuations WHERE key = %d AND atom = %d;", kuuid, auuid)); err != nil {
		return nil, err
	}
	rp.vtype = 0
	if err := rp.rs.ForEachRow(rp.rowValue); err != nil {
		return nil, err
	}
	if rp.vtype == 0 {
		return nil, nil
	}
	return s.doUnpackValue(rp.vtype, rp.fltval, rp.strval, rp.lnkval)
}

func (s *Store) doGetValue(query string) (atom.Value, error) {
	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(query); err != nil {
		return nil, err
	}
	rp.vtype = 0
	if err := rp.rs.ForEachRow(rp.rowValue); err != nil {
		return nil, err
	}
	if rp.vtype == 0 {
		return nil, errors.Wrap(ErrUnknownValueType, "no row")
	}
	return s.doUnpackValue(rp.vtype, rp.fltval, rp.strval, rp.lnkval)
}

// doUnpackValue converts a row's typed column into a Value, recursively
// fetching LinkValue children.
func (s *Store) doUnpackValue(vtype int, fltval, strval, lnkval string) (atom.Value, error) {
	switch s.tmap.loadingType(vtype) {
	case atom.TFloatValue:
		var vals, err = parseFloatArray(fltval)
		if err != nil {
			return nil, err
		}
		return atom.FloatValue(vals), nil

	case atom.TStringValue:
		return atom.StringValue(parseStringArray(strval)), nil

	case atom.TLinkValue:
		var children, err = parseUUIDArray(lnkval)
		if err != nil {
			return nil, err
		}
		var out = make(atom.LinkValue, len(children))
		for i, c := range children {
			if out[i], err = s.GetValue(VUID(c)); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, errors.Wrapf(ErrUnknownValueType, "db type %d", vtype)
}

// storeAtomValues writes every (key, value) binding of |a|.
func (s *Store) storeAtomValues(a *atom.Atom) error {
	for _, key := range a.Keys() {
		if err := s.StoreValuation(key, a, a.Value(key)); err != nil {
			return err
		}
	}
	return nil
}

// getAtomValues fetches every valuation of |a| and attaches it. A valuation
// whose key UUID cannot be resolved is a hard error, not a silent drop.
func (s *Store) getAtomValues(a *atom.Atom) error {
	if a == nil {
		return nil
	}
	var uuid = s.tlb.GetUUID(a)

	var rp = response{store: s}
	defer rp.release()

	if err := rp.exec(fmt.Sprintf(
		"SELECT * FROM Valuations WHERE atom = %d;", uuid)); err != nil {
		return err
	}

	type row struct {
		key           atom.UUID
		vtype         int
		flt, str, lnk string
	}
	var rows []row
	if err := rp.rs.ForEachRow(func() error {
		if err := rp.rowValue(); err != nil {
			return err
		}
		rows = append(rows, row{rp.key, rp.vtype, rp.fltval, rp.strval, rp.lnkval})
		return nil
	}); err != nil {
		return err
	}

	for _, r := range rows {
		var key = s.tlb.GetAtom(r.key)
		if key == nil {
			var p, err = s.petAtom(r.key)
			if err != nil {
				return errors.Wrapf(ErrMissingKey, "key uuid %d of atom %d", r.key, uuid)
			}
			if key, err = s.getRecursiveIfNotExists(p); err != nil {
				return err
			}
		}
		var v, err = s.doUnpackValue(r.vtype, r.flt, r.str, r.lnk)
		if err != nil {
			return err
		}
		a.SetValue(key, v)
	}
	return nil
}
