package sqlstore

import "github.com/shadowridgedev/atomspace/atom"

// Schema DDL per dialect. Postgres stores the outgoing set and value
// payloads as native arrays; the generic dialects store the same literal
// text and carry an Edges projection for incoming-set queries. The Values
// table is quoted everywhere: VALUES is a reserved word.

var postgresDDL = []string{
	`CREATE TABLE Spaces (
		space BIGINT PRIMARY KEY,
		parent BIGINT);`,

	`CREATE TABLE Atoms (
		uuid BIGINT PRIMARY KEY,
		space BIGINT REFERENCES Spaces(space),
		type SMALLINT,
		tv_type SMALLINT,
		stv_mean FLOAT,
		stv_confidence FLOAT,
		stv_count DOUBLE PRECISION,
		height SMALLINT,
		name TEXT,
		outgoing BIGINT[],
		UNIQUE (type, name),
		UNIQUE (type, outgoing));`,

	`CREATE TABLE Valuations (
		key BIGINT REFERENCES Atoms(uuid),
		atom BIGINT REFERENCES Atoms(uuid),
		type SMALLINT,
		floatvalue DOUBLE PRECISION[],
		stringvalue TEXT[],
		linkvalue BIGINT[],
		UNIQUE (key, atom));`,

	`CREATE INDEX ON Valuations (atom);`,

	`CREATE TABLE "Values" (
		vuid BIGINT PRIMARY KEY,
		type SMALLINT,
		floatvalue DOUBLE PRECISION[],
		stringvalue TEXT[],
		linkvalue BIGINT[]);`,

	`CREATE TABLE TypeCodes (
		type SMALLINT UNIQUE,
		typename TEXT UNIQUE);`,
}

var genericDDL = []string{
	`CREATE TABLE Spaces (
		space BIGINT PRIMARY KEY,
		parent BIGINT);`,

	`CREATE TABLE Atoms (
		uuid BIGINT PRIMARY KEY,
		space BIGINT REFERENCES Spaces(space),
		type SMALLINT,
		tv_type SMALLINT,
		stv_mean FLOAT,
		stv_confidence FLOAT,
		stv_count DOUBLE PRECISION,
		height SMALLINT,
		name TEXT,
		outgoing TEXT,
		UNIQUE (type, name),
		UNIQUE (type, outgoing));`,

	`CREATE TABLE Valuations (
		key BIGINT REFERENCES Atoms(uuid),
		atom BIGINT REFERENCES Atoms(uuid),
		type SMALLINT,
		floatvalue TEXT,
		stringvalue TEXT,
		linkvalue TEXT,
		UNIQUE (key, atom));`,

	`CREATE INDEX valuations_atom ON Valuations (atom);`,

	`CREATE TABLE "Values" (
		vuid BIGINT PRIMARY KEY,
		type SMALLINT,
		floatvalue TEXT,
		stringvalue TEXT,
		linkvalue TEXT);`,

	`CREATE TABLE TypeCodes (
		type SMALLINT UNIQUE,
		typename TEXT UNIQUE);`,

	`CREATE TABLE Edges (
		link BIGINT,
		pos SMALLINT,
		target BIGINT);`,

	`CREATE INDEX edges_target ON Edges (target);`,
}

var defaultSpaces = []string{
	`INSERT INTO Spaces VALUES (0,0);`,
	`INSERT INTO Spaces VALUES (1,1);`,
}

// CreateTables creates the schema and the two default spaces.
func (s *Store) CreateTables() error {
	var ddl = genericDDL
	if s.dialect == dialectPostgres {
		ddl = postgresDDL
	}

	var rp = response{store: s}
	defer rp.release()

	for _, stmt := range append(append([]string{}, ddl...), defaultSpaces...) {
		if err := rp.exec(stmt); err != nil {
			return err
		}
	}

	s.typemapLoaded.Store(false)
	s.nextVUID.CompareAndSwap(0, 1)
	return nil
}

// KillData destroys all data in the database. It is meant only for running
// test cases; it leads to total data loss.
func (s *Store) KillData() error {
	var stmts = []string{
		`DELETE FROM Valuations;`,
		`DELETE FROM "Values";`,
	}
	if s.dialect != dialectPostgres {
		stmts = append(stmts, `DELETE FROM Edges;`)
	}
	stmts = append(stmts,
		`DELETE FROM Atoms;`,
		`DELETE FROM Spaces;`,
	)
	stmts = append(stmts, defaultSpaces...)

	var rp = response{store: s}
	defer rp.release()

	for _, stmt := range stmts {
		if err := rp.exec(stmt); err != nil {
			return err
		}
	}

	// Forget what we knew about the old contents.
	s.idCacheMu.Lock()
	s.localIDCache = make(map[atom.UUID]struct{})
	s.idCreateCache = make(map[atom.UUID]struct{})
	s.spaceIDCache = make(map[atom.UUID]struct{})
	s.idCacheInited = false
	s.idCacheMu.Unlock()
	return nil
}

// RenameTables moves the live tables aside as *_Backup, ahead of a
// CreateTables of a fresh schema.
func (s *Store) RenameTables() error {
	var tables = []string{"Spaces", "Atoms", "Valuations", `"Values"`, "TypeCodes"}
	if s.dialect != dialectPostgres {
		tables = append(tables, "Edges")
	}

	var rp = response{store: s}
	defer rp.release()

	for _, t := range tables {
		var backup = t + "_Backup"
		if t == `"Values"` {
			backup = `"Values_Backup"`
		}
		if err := rp.exec("ALTER TABLE " + t + " RENAME TO " + backup + ";"); err != nil {
			return err
		}
	}
	return nil
}
