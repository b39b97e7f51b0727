// Package sqlstore implements store.DB on database/sql. Statements are written with ? placeholders and rebound to
// the placeholder style of the dialect.
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RustLabx/rstoken/lib/store"
)

// Dialect is the placeholder style of a database.
type Dialect int

const (
	// Question uses ? placeholders (sqlite).
	Question Dialect = iota
	// Dollar uses $1, $2... placeholders (postgres).
	Dollar
)

// Store is a store.DB on a sql database whose schema is already in place.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New returns a store using db.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Rebind rewrites the ? placeholders of query for d.
func Rebind(d Dialect, query string) string {
	if d != Dollar {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func (s *Store) exec(query string, args ...interface{}) (sql.Result, error) {
	return s.db.Exec(Rebind(s.dialect, query), args...)
}

func (s *Store) queryRow(query string, args ...interface{}) *sql.Row {
	return s.db.QueryRow(Rebind(s.dialect, query), args...)
}

// AddAddress saves an address if it does not already exist on net and returns its id.
func (s *Store) AddAddress(a store.Address, net string) ([]byte, error) {
	id := uuid.New()

	if _, err := s.exec(`INSERT INTO addresses (id, net, name, addr) VALUES (?, ?, ?, ?)
		ON CONFLICT (net, addr) DO NOTHING`, id.String(), net, a.Name, a.Addr); err != nil {
		return nil, fmt.Errorf("could not insert address in db: %w", err)
	}

	var saved string
	if err := s.queryRow(`SELECT id FROM addresses WHERE net = ? AND addr = ?`, net, a.Addr).Scan(&saved); err != nil {
		return nil, fmt.Errorf("could not read address id: %w", err)
	}

	u, err := uuid.Parse(saved)
	if err != nil {
		return nil, fmt.Errorf("address id %q: %w", saved, err)
	}

	return u[:], nil
}

// RemoveAddress deletes an address from the database.
func (s *Store) RemoveAddress(a store.Address, net string) error {
	res, err := s.exec(`DELETE FROM addresses WHERE net = ? AND addr = ?`, net, a.Addr)
	if err != nil {
		return fmt.Errorf("could not remove address: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return store.ErrAddrNotFound
	}

	return nil
}

// GetAddresses returns the addresses monitored for the networks in nets, or for all networks if nets is empty.
func (s *Store) GetAddresses(nets []string) ([]store.ListenedAddresses, error) {
	rows, err := s.db.Query(`SELECT net, id, name, addr FROM addresses ORDER BY net, addr`)
	if err != nil {
		return nil, fmt.Errorf("could not get addresses: %w", err)
	}
	defer rows.Close()

	addrs := []store.ListenedAddresses{}

	for rows.Next() {
		var (
			net, id string
			a       store.Address
		)

		if err = rows.Scan(&net, &id, &a.Name, &a.Addr); err != nil {
			return nil, fmt.Errorf("could not scan address: %w", err)
		}

		if len(nets) > 0 && !slices.Contains(nets, net) {
			continue
		}

		if u, errID := uuid.Parse(id); errID == nil {
			a.ID = u[:]
		}

		if len(addrs) == 0 || addrs[len(addrs)-1].Net != net {
			addrs = append(addrs, store.ListenedAddresses{Net: net})
		}

		last := &addrs[len(addrs)-1]
		last.Addr = append(last.Addr, a)
	}

	return addrs, rows.Err()
}

// SaveTx records a transaction. Saving it again updates its status.
func (s *Store) SaveTx(tx store.TxRecord) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := s.exec(`INSERT INTO transactions (net, hash, from_addr, to_addr, token, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (net, hash) DO UPDATE SET status = excluded.status`,
		tx.Net, tx.Hash, tx.From, tx.To, tx.Token, tx.Amount, tx.Status, tx.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("could not save transaction: %w", err)
	}

	return nil
}

// GetTx returns the transaction recorded with hash on net.
func (s *Store) GetTx(net, hash string) (store.TxRecord, error) {
	tx := store.TxRecord{Net: net, Hash: hash}

	var created int64

	err := s.queryRow(`SELECT from_addr, to_addr, token, amount, status, created_at FROM transactions
		WHERE net = ? AND hash = ?`, net, hash).Scan(&tx.From, &tx.To, &tx.Token, &tx.Amount, &tx.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return tx, store.ErrTxNotFound
	}

	if err != nil {
		return tx, fmt.Errorf("could not get transaction: %w", err)
	}

	tx.CreatedAt = time.Unix(created, 0)

	return tx, nil
}

// LoadExplorer loads the NetExplorer of net.
func (s *Store) LoadExplorer(net string) (ne store.NetExplorer, err error) {
	var (
		block    int64
		bh, objs string
	)

	err = s.queryRow(`SELECT block, bh, bhi, objects FROM explorer WHERE net = ?`, net).Scan(&block, &bh, &ne.Bhi, &objs)
	if errors.Is(err, sql.ErrNoRows) {
		return ne, store.ErrDataNotFound
	}

	if err != nil {
		return ne, fmt.Errorf("could not load explorer: %w", err)
	}

	ne.Block = uint64(block) //nolint:gosec // block numbers fit

	if err = json.Unmarshal([]byte(bh), &ne.Bh); err != nil {
		return ne, fmt.Errorf("explorer block hashes: %w", err)
	}

	if err = json.Unmarshal([]byte(objs), &ne.Map); err != nil {
		return ne, fmt.Errorf("explorer objects: %w", err)
	}

	return ne, nil
}

// SaveExplorer saves the NetExplorer of net.
func (s *Store) SaveExplorer(net string, ne store.NetExplorer) error {
	bh, err := json.Marshal(ne.Bh)
	if err != nil {
		return fmt.Errorf("explorer block hashes: %w", err)
	}

	objs, err := json.Marshal(ne.Map)
	if err != nil {
		return fmt.Errorf("explorer objects: %w", err)
	}

	_, err = s.exec(`INSERT INTO explorer (net, block, bh, bhi, objects) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (net) DO UPDATE SET block = excluded.block, bh = excluded.bh, bhi = excluded.bhi,
		objects = excluded.objects`, net, int64(ne.Block), string(bh), ne.Bhi, string(objs)) //nolint:gosec
	if err != nil {
		return fmt.Errorf("could not save explorer: %w", err)
	}

	return nil
}
