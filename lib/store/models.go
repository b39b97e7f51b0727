package store

import "time"

// Names of listened addresses, telling what is monitored on the address.
const (
	KindAddress  = "listen"   // transactions from or to the address
	KindContract = "contract" // token transfers of the contract
)

// Address contains the fields for an address (or token contract) listened on a network.
type Address struct {
	ID   []byte `json:"id"`
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// ListenedAddresses contains the fields of monitored objects saved to DB.
type ListenedAddresses struct {
	Net  string    `json:"net"`
	Addr []Address `json:"addresses"`
}

// NetExplorer is the scan cursor of an explorer: last block explored, a ring of the latest block hashes to detect
// reorganisations and the listened objects.
type NetExplorer struct {
	Block uint64                 `json:"block" bson:"block"`
	Bh    []string               `json:"bh" bson:"bh"`
	Bhi   int                    `json:"bhi" bson:"bhi"`
	Map   map[string]interface{} `json:"map" bson:"map"`
}

// TxRecord is a transaction sent through the wallet. Amount is in the asset unit, Token is empty for the native
// asset.
type TxRecord struct {
	Net       string    `json:"net" bson:"net"`
	Hash      string    `json:"hash" bson:"_id"`
	From      string    `json:"from" bson:"from"`
	To        string    `json:"to" bson:"to"`
	Token     string    `json:"token,omitempty" bson:"token,omitempty"`
	Amount    string    `json:"amount" bson:"amount"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
