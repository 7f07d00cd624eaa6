package ledger

// RPC endpoint paths for chain queries and transaction submission.
// All paths are consolidated here so an endpoint change lands in one place.
const (
	heightPath  = "/v1/query/height"
	balancePath = "/v1/query/balance"
	txPath      = "/v1/query/tx"
	rawTxPath   = "/v1/client/rawtx"
)
