// Package mongo implements the store for MongoDB. Addresses live in the "addr" database, explorer cursors in "expl"
// and sent transactions in "tx", with one collection per network.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/RustLabx/rstoken/lib/store"
)

const timeout = 5 * time.Second

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// Address is a store address as saved to MongoDB.
type Address struct {
	ID   primitive.ObjectID `json:"_id" bson:"_id"`
	Name string             `json:"name,omitempty" bson:"name,omitempty"`
	Addr string             `json:"address" bson:"address"`
}

// Address converts to the store.Address type.
func (a Address) Address() store.Address {
	return store.Address{ID: a.ID[:], Addr: a.Addr, Name: a.Name}
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := mgo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// Close will close a database connection. Must be called at termination time.
func (m *Mongo) Close() error {
	return m.c.Disconnect(context.Background())
}

// AddAddress saves an address if the address does not already exist.
func (m *Mongo) AddAddress(a store.Address, net string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	col := m.c.Database("addr").Collection(net)

	var ma Address

	err := col.FindOne(ctx, bson.M{"address": a.Addr}).Decode(&ma)
	if errors.Is(err, mgo.ErrNoDocuments) { // if not found, do insert it!!
		res, errIns := col.InsertOne(ctx, bson.M{"name": a.Name, "address": a.Addr})
		if errIns != nil {
			return nil, fmt.Errorf("could not insert address in db: %w", errIns)
		}

		id, _ := res.InsertedID.(primitive.ObjectID)

		return id[:], nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not insert address in db: %w", err)
	}

	log.Debug().Str("net", net).Str("addr", ma.Addr).Msg("address was already listened")

	return ma.ID[:], nil
}

// RemoveAddress deletes an address from the database.
func (m *Mongo) RemoveAddress(a store.Address, net string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := m.c.Database("addr").Collection(net).DeleteOne(ctx, bson.M{"address": a.Addr})
	if err != nil {
		return fmt.Errorf("could not remove address: %w", err)
	}

	if res.DeletedCount != 1 {
		return store.ErrAddrNotFound
	}

	return nil
}

// GetAddresses returns the addresses or objects monitored for the networks indicated in the nets slice, or for all of
// them if empty.
func (m *Mongo) GetAddresses(nets []string) ([]store.ListenedAddresses, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cols, err := m.c.Database("addr").ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error getting mongo DB object: %w", err)
	}

	slices.Sort(cols)

	addrs := []store.ListenedAddresses{}

	for _, col := range cols {
		if len(nets) > 0 && !slices.Contains(nets, col) {
			continue
		}

		docs, err := m.c.Database("addr").Collection(col).Find(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("error reading addresses of %s: %w", col, err)
		}

		var found []Address
		if err = docs.All(ctx, &found); err != nil {
			return nil, fmt.Errorf("error decoding addresses of %s: %w", col, err)
		}

		la := store.ListenedAddresses{Net: col}
		for _, a := range found {
			la.Addr = append(la.Addr, a.Address())
		}

		addrs = append(addrs, la)
	}

	return addrs, nil
}

// SaveTx upserts a transaction. Saving it again only updates its status.
func (m *Mongo) SaveTx(tx store.TxRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := m.c.Database("tx").Collection(tx.Net).UpdateOne(ctx,
		bson.M{"_id": tx.Hash},
		bson.M{
			"$set": bson.M{"status": tx.Status},
			"$setOnInsert": bson.M{
				"net": tx.Net, "from": tx.From, "to": tx.To, "token": tx.Token, "amount": tx.Amount,
				"created_at": tx.CreatedAt,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("could not save transaction: %w", err)
	}

	return nil
}

// GetTx returns the transaction recorded with hash on net.
func (m *Mongo) GetTx(net, hash string) (tx store.TxRecord, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err = m.c.Database("tx").Collection(net).FindOne(ctx, bson.M{"_id": hash}).Decode(&tx)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return store.TxRecord{Net: net, Hash: hash}, store.ErrTxNotFound
	}

	return tx, err
}

// LoadExplorer loads from db the NetExplorer type for the indicated network.
func (m *Mongo) LoadExplorer(net string) (ne store.NetExplorer, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = m.c.Database("expl").Collection(net).FindOne(ctx, bson.D{}).Decode(&ne); errors.Is(err,
		mgo.ErrNoDocuments) {
		err = store.ErrDataNotFound
	}

	return
}

// SaveExplorer saves to db the NetExplorer for the indicated network.
func (m *Mongo) SaveExplorer(net string, ne store.NetExplorer) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err = m.c.Database("expl").Collection(net).UpdateOne(ctx,
		bson.D{}, // filter
		bson.D{ // update
			{
				Key: "$set", Value: bson.D{
					{Key: "block", Value: ne.Block},
					{Key: "bh", Value: ne.Bh},
					{Key: "bhi", Value: ne.Bhi},
					{Key: "map", Value: ne.Map},
				},
			},
		},
		options.Update().SetUpsert(true))

	return
}
