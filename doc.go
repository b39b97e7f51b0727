// Package rstoken and its sub-packages implement backend services to hold keys and move assets on multiple
// blockchains.
/*
rstoken provides two services:

1) a wallet service (package wallet) with a RESTful API to import keys, query balances and blocks, send native asset
and ERC20 token transactions, follow their status and monitor addresses and token contracts.

2) an explorer service (package explorer) that scans mined blocks and sends events for the addresses and token
contracts being monitored.

# Architecture

The transaction lifecycle of every chain (balance, build, sign, send and watch) is driven by an adapter registered in
a chain runtime (package lib/block). Ethereum has a real adapter (package lib/block/ethereum); Solana, Bitcoin and Sui
are registered with adapters that reply not implemented (package lib/block/stub). Signing capabilities are held in
memory by a keyring (package lib/keys) and never leave it: adapters hand them the digest to sign.

The wallet and explorer services communicate via a message broker (package lib/msg: AMQP, Kafka or in-process). The
wallet forwards monitoring requests, the explorer consumes them and publishes an event for every matching
transaction. Both services persist their data through a database agnostic layer (package lib/store: MongoDB,
PostgreSQL or SQLite).

Configuration is read from a JSON or YAML file, a .env file and RST_ environment variables (package lib/config). Both
services log with zerolog (package lib/logger) and can serve Prometheus metrics of every adapter call with "-m".

# Wallet

Run cmd/wallet. With "-x" the explorer runs in the same process. Responses are wrapped in a
{"status", "message", "data"} envelope and errors are replied with a non 2xx status.

# Explorer

Run cmd/explorer. The explorer starts at the current height of a network the first time and resumes from the last
block scanned afterwards, rescanning blocks when the chain is reorganised.
*/
package rstoken
