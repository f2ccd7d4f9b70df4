package mat

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	tableMatrix = "m"
	tableShape  = "s"
)

// A DiskMatrix archives a matrix in a sqlite database.
type DiskMatrix struct {
	Path string
	rows int
	cols int

	db *sql.DB
}

func DiskM(dbPath string, dense *Dense) *DiskMatrix {
	m, err := diskM(dbPath, dense)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

func diskM(dbPath string, dense *Dense) (*DiskMatrix, error) {
	m := &DiskMatrix{Path: dbPath, rows: dense.Rows(), cols: dense.Cols()}
	var err error
	m.db, err = newDB(m.Path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := setShape(ctx, tx, m.rows, m.cols); err != nil {
		tx.Rollback()
		return nil, errors.Wrap(err, "")
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			if err := setItem(ctx, tx, i, j, dense.At(i, j)); err != nil {
				tx.Rollback()
				return nil, errors.Wrap(err, "")
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	return m, nil
}

// OpenDisk opens an existing archive.
func OpenDisk(dbPath string) (*DiskMatrix, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	m := &DiskMatrix{Path: dbPath, db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT rows, cols FROM %s`, tableShape)
	if err := db.QueryRowContext(ctx, sqlStr).Scan(&m.rows, &m.cols); err != nil {
		db.Close()
		return nil, errors.Wrap(err, fmt.Sprintf("%s", dbPath))
	}

	return m, nil
}

func (m *DiskMatrix) Close() error {
	return m.db.Close()
}

func (m *DiskMatrix) Rows() int { return m.rows }
func (m *DiskMatrix) Cols() int { return m.cols }

func (m *DiskMatrix) At(i, j int) complex128 {
	v, err := m.at(i, j)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return v
}

func (m *DiskMatrix) at(i, j int) (complex128, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT re, im FROM %s WHERE i=? AND j=?`, tableMatrix)
	var re, im float64
	err := m.db.QueryRowContext(ctx, sqlStr, i, j).Scan(&re, &im)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return cmplx.NaN(), errors.Wrap(err, "")
	default:
		return complex(re, im), nil
	}
}

// Dense loads the archived matrix back into memory.
func (m *DiskMatrix) Dense() *Dense {
	d, err := m.dense()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return d
}

func (m *DiskMatrix) dense() (*Dense, error) {
	d := Zeros(m.rows, m.cols)

	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT i, j, re, im FROM %s ORDER BY i, j`, tableMatrix)
	rows, err := m.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	for rows.Next() {
		var i, j int
		var re, im float64
		if err := rows.Scan(&i, &j, &re, &im); err != nil {
			return nil, errors.Wrap(err, "")
		}
		if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
			return nil, errors.Errorf("%d %d %d %d", i, j, m.rows, m.cols)
		}

		d.Set(i, j, complex(re, im))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}

	return d, nil
}

func (m *DiskMatrix) NumNonZero() int {
	n, err := m.numNonZero()
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return n
}

func (m *DiskMatrix) numNonZero() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf("SELECT count(1) FROM %s", tableMatrix)
	var n int
	if err := m.db.QueryRowContext(ctx, sqlStr).Scan(&n); err != nil {
		return -1, errors.Wrap(err, "")
	}
	return n, nil
}

func (m *DiskMatrix) WriteCSV(dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 48*time.Hour)
	defer cancel()

	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", m.rows, m.cols)), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	sqlStr := fmt.Sprintf(`SELECT i, j, re, im FROM %s ORDER BY i, j`, tableMatrix)
	rows, err := m.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer rows.Close()

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}
	w := csv.NewWriter(cooF)

	for rows.Next() {
		var i, j int
		var re, im float64
		if err1 := rows.Scan(&i, &j, &re, &im); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
		v := complex(re, im)

		if err1 := w.Write([]string{FormatNumpy(v), strconv.Itoa(i), strconv.Itoa(j)}); err1 != nil && err == nil {
			err = errors.Wrap(err1, "")
			break
		}
	}
	if err1 := rows.Err(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setItem(ctx context.Context, db execer, i, j int, v complex128) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (i, j, re, im) VALUES (?, ?, ?, ?)`, tableMatrix)
	args := []any{i, j, real(v), imag(v)}
	if v == 0 {
		sqlStr = fmt.Sprintf(`DELETE FROM %s WHERE i=? AND j=?`, tableMatrix)
		args = []any{i, j}
	}
	if _, err := db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

func setShape(ctx context.Context, db execer, rows, cols int) error {
	sqlStr := fmt.Sprintf(`INSERT INTO %s (rows, cols) VALUES (?, ?)`, tableShape)
	if _, err := db.ExecContext(ctx, sqlStr, rows, cols); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%d %d", rows, cols))
	}
	return nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, sqlStr := range []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableMatrix),
		fmt.Sprintf(`CREATE TABLE %s (i INTEGER, j INTEGER, re REAL, im REAL, PRIMARY KEY (i, j)) STRICT`, tableMatrix),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableShape),
		fmt.Sprintf(`CREATE TABLE %s (rows INTEGER, cols INTEGER) STRICT`, tableShape),
	} {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
