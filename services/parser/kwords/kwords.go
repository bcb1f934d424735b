package kwords

import "go-kvtree/services/parser/query"

// Commands maps the first word of a statement, upper cased, to its query
// type. SET and DELETE are aliases.
var Commands = map[string]query.QueryType{
	"PUT":    query.PUT,
	"SET":    query.PUT,
	"GET":    query.GET,
	"DEL":    query.DELETE,
	"DELETE": query.DELETE,
	"SCAN":   query.SCAN,
	"DUMP":   query.DUMP,
	"STATS":  query.STATS,
	"VERIFY": query.VERIFY,
	"RESET":  query.RESET,
}

var KeyWords = map[string]struct{}{
	"LIMIT": {},
}
