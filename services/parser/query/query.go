package query

type QueryType string

const (
	PUT    QueryType = "PUT"
	GET    QueryType = "GET"
	DELETE QueryType = "DEL"
	SCAN   QueryType = "SCAN"
	DUMP   QueryType = "DUMP"
	STATS  QueryType = "STATS"
	VERIFY QueryType = "VERIFY"
	RESET  QueryType = "RESET"
)

type Querier interface {
	GetType() QueryType
}

// Query is a command without arguments.
type Query struct {
	Type QueryType `json:"type"`
}

func (q *Query) GetType() QueryType {
	return q.Type
}

/*
PUT <key> <value>
*/
type QueryPut struct {
	Query
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

/*
GET <key>
*/
type QueryGet struct {
	Query
	Key []byte `json:"key"`
}

/*
DEL <key>
*/
type QueryDelete struct {
	Query
	Key []byte `json:"key"`
}

/*
SCAN [<from>] [LIMIT <n>]
*/
type QueryScan struct {
	Query
	From  []byte `json:"from"`
	Limit int    `json:"limit"`
}
