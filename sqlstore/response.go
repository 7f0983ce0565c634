package sqlstore

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/shadowridgedev/atomspace/atom"
)

// response is a scratch cursor for one query sequence. It borrows a pooled
// Connection on first exec and holds it until release, so a sequence of
// statements (eg BEGIN .. COMMIT) runs on one session. Allocate on the
// stack; always `defer rp.release()`.
type response struct {
	store *Store
	conn  Connection
	rs    RecordSet

	// Scratch of the atom row being assembled.
	uuid    atom.UUID
	itype   int
	name    string
	outlist string
	height  int
	tvType  int
	mean    float64
	conf    float64
	count   float64

	// Scratch of the value row being assembled.
	vuid   uint64
	vtype  int
	fltval string
	strval string
	lnkval string
	key    atom.UUID

	// Typemap row scratch.
	tname string

	// Generic positive integer scalar.
	intval uint64

	rowExists bool

	// Target set of rowNoteID.
	idSet map[atom.UUID]struct{}
}

func (rp *response) exec(query string) error {
	if rp.rs != nil {
		rp.rs.Release()
		rp.rs = nil
	}
	// Take a pooled connection on first use. If the pool is empty this
	// blocks until one is returned, which is what regulates how many SQL
	// requests are outstanding in parallel.
	if rp.conn == nil {
		rp.conn = rp.store.pool.pop()
	}
	var rs, err = rp.conn.Exec(query)
	if err != nil {
		return errors.Wrapf(err, "exec %.60q", query)
	}
	rp.rs = rs
	return nil
}

func (rp *response) release() {
	if rp.rs != nil {
		rp.rs.Release()
		rp.rs = nil
	}
	if rp.conn != nil {
		rp.store.pool.push(rp.conn)
		rp.conn = nil
	}
}

// rowAtom parses the current row's atom columns into scratch fields. Name
// and outgoing are cleared first: one of the two is NULL on every row, and
// must not bleed through from the prior row.
func (rp *response) rowAtom() error {
	rp.name, rp.outlist = "", ""
	return rp.rs.ForEachColumn(rp.atomColumn)
}

func (rp *response) atomColumn(name, value string) (err error) {
	switch name {
	case "uuid":
		var u uint64
		if u, err = strconv.ParseUint(value, 10, 64); err == nil {
			rp.uuid = atom.UUID(u)
		}
	case "type":
		rp.itype, err = strconv.Atoi(value)
	case "name":
		rp.name = value
	case "outgoing":
		rp.outlist = value
	case "height":
		rp.height, err = strconv.Atoi(value)
	case "tv_type":
		rp.tvType, err = strconv.Atoi(value)
	case "stv_mean":
		rp.mean, err = strconv.ParseFloat(value, 64)
	case "stv_confidence":
		rp.conf, err = strconv.ParseFloat(value, 64)
	case "stv_count":
		rp.count, err = strconv.ParseFloat(value, 64)
	}
	return errors.Wrapf(err, "column %s", name)
}

// rowType parses a TypeCodes row and installs it in the type map.
func (rp *response) rowType() error {
	rp.tname = ""
	if err := rp.rs.ForEachColumn(rp.typeColumn); err != nil {
		return err
	}
	rp.store.tmap.set(rp.itype, rp.tname, rp.store.registry)
	return nil
}

func (rp *response) typeColumn(name, value string) (err error) {
	switch name {
	case "type":
		rp.itype, err = strconv.Atoi(value)
	case "typename":
		rp.tname = value
	}
	return errors.Wrapf(err, "column %s", name)
}

// rowValue parses a Values or Valuations row. The two tables share shape,
// so one parser serves both. The typed columns are cleared first; all but
// one is NULL on every row.
func (rp *response) rowValue() error {
	rp.fltval, rp.strval, rp.lnkval = "", "", ""
	return rp.rs.ForEachColumn(rp.valueColumn)
}

func (rp *response) valueColumn(name, value string) (err error) {
	switch name {
	case "floatvalue":
		rp.fltval = value
	case "stringvalue":
		rp.strval = value
	case "linkvalue":
		rp.lnkval = value
	case "type":
		rp.vtype, err = strconv.Atoi(value)
	case "vuid":
		rp.vuid, err = strconv.ParseUint(value, 10, 64)
	case "key":
		var u uint64
		if u, err = strconv.ParseUint(value, 10, 64); err == nil {
			rp.key = atom.UUID(u)
		}
	}
	return errors.Wrapf(err, "column %s", name)
}

// rowIntval parses a single positive integer scalar, whatever its column.
func (rp *response) rowIntval() error {
	return rp.rs.ForEachColumn(func(name, value string) (err error) {
		rp.intval, err = strconv.ParseUint(value, 10, 64)
		return errors.Wrapf(err, "column %s", name)
	})
}

// rowNoteID collects the row's id into idSet.
func (rp *response) rowNoteID() error {
	return rp.rs.ForEachColumn(func(name, value string) error {
		var u, err = strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "column %s", name)
		}
		rp.idSet[atom.UUID(u)] = struct{}{}
		return nil
	})
}

// rowMarkExists notes that at least one row came back.
func (rp *response) rowMarkExists() error {
	rp.rowExists = true
	return nil
}
