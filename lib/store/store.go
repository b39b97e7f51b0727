// Package store defines the interface for database implementations to the wallet and explorer services.
//
// Records are kept per network, net being the chain code (ie. "eth").
package store

import (
	"errors"
)

// DB defines required methods for wallets and explorers
type DB interface {
	// methods for wallet service
	AddAddress(a Address, net string) ([]byte, error)
	RemoveAddress(a Address, net string) error
	GetAddresses(nets []string) ([]ListenedAddresses, error)
	SaveTx(tx TxRecord) error
	GetTx(net, hash string) (TxRecord, error)
	// methods for explorer service
	LoadExplorer(net string) (NetExplorer, error)
	SaveExplorer(net string, ne NetExplorer) error
	// Close releases the connection. Must be called at termination time.
	Close() error
}

// Errors returned
var (
	ErrAddrNotFound = errors.New("address was not found in store")
	ErrDataNotFound = errors.New("data was not found in store")
	ErrTxNotFound   = errors.New("transaction was not found in store")
	ErrUnknownType  = errors.New("unknown database type")
)
