package parser

import (
	"bytes"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"go-kvtree/services/parser/errors"
	"go-kvtree/services/parser/kwords"
	"go-kvtree/services/parser/query"
	"go-kvtree/util/helpers"

	perrors "github.com/pkg/errors"
)

type ParserService interface {
	ParseQuery(in []byte) (query.Querier, error)
}

type ParserServiceT struct{}

func New() *ParserServiceT {
	return &ParserServiceT{}
}

// ParseQuery parses one command line. Keys and values are bare words,
// double or back quoted strings, or 0x-prefixed hex literals.
func (ps *ParserServiceT) ParseQuery(data []byte) (q query.Querier, err error) {
	defer helpers.RecoverOnError(&err)()

	t := tokenize(data)
	first, ok := t.next()
	if !ok {
		return nil, errors.ErrEmptyQuery
	}

	qt, ok := kwords.Commands[strings.ToUpper(first.text)]
	if first.tok != scanner.Ident || !ok {
		return nil, perrors.Wrapf(errors.ErrUnknownCommand, "'%s'", first.text)
	}

	switch qt {
	case query.PUT:
		q = &query.QueryPut{
			Query: query.Query{Type: qt},
			Key:   t.operand(errors.ErrMissingKey),
			Value: t.operand(errors.ErrMissingValue),
		}
	case query.GET:
		q = &query.QueryGet{
			Query: query.Query{Type: qt},
			Key:   t.operand(errors.ErrMissingKey),
		}
	case query.DELETE:
		q = &query.QueryDelete{
			Query: query.Query{Type: qt},
			Key:   t.operand(errors.ErrMissingKey),
		}
	case query.SCAN:
		q = t.scan()
	default:
		q = &query.Query{Type: qt}
	}

	if extra, ok := t.next(); ok {
		return nil, perrors.Wrapf(errors.ErrSyntax, "unexpected '%s'", extra.text)
	}
	return q, nil
}

type token struct {
	tok  rune
	text string
}

type tokens struct {
	list []token
	pos  int
}

func tokenize(data []byte) *tokens {
	s := &scanner.Scanner{}
	s.Init(bytes.NewReader(data))
	s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanRawStrings
	s.IsIdentRune = func(ch rune, i int) bool {
		return ch != '"' && ch != '`' && ch != scanner.EOF &&
			!unicode.IsSpace(ch) && unicode.IsPrint(ch)
	}
	s.Error = func(s *scanner.Scanner, msg string) {
		panic(perrors.Wrap(errors.ErrSyntax, msg))
	}

	t := &tokens{}
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		t.list = append(t.list, token{tok, s.TokenText()})
	}
	return t
}

func (t *tokens) next() (token, bool) {
	tok, ok := t.peek()
	if ok {
		t.pos++
	}
	return tok, ok
}

func (t *tokens) peek() (token, bool) {
	if t.pos >= len(t.list) {
		return token{tok: scanner.EOF}, false
	}
	return t.list[t.pos], true
}

// operand reads the next token as a key or value and panics with missing
// when there is none.
func (t *tokens) operand(missing error) []byte {
	tok, ok := t.next()
	if !ok {
		panic(missing)
	}

	switch tok.tok {
	case scanner.String, scanner.RawString:
		str, err := strconv.Unquote(tok.text)
		if err != nil {
			panic(perrors.Wrap(errors.ErrSyntax, err.Error()))
		}
		return []byte(str)
	default:
		b, err := helpers.ParseBytes(tok.text)
		if err != nil {
			panic(perrors.Wrapf(errors.ErrSyntax, "bad hex literal '%s'", tok.text))
		}
		return b
	}
}

func (t *tokens) scan() *query.QueryScan {
	q := &query.QueryScan{Query: query.Query{Type: query.SCAN}}

	tok, ok := t.peek()
	if !ok {
		return q
	}
	if _, isKW := kwords.KeyWords[strings.ToUpper(tok.text)]; !isKW || tok.tok != scanner.Ident {
		q.From = t.operand(errors.ErrMissingKey)
	}

	tok, ok = t.next()
	if !ok {
		return q
	} else if strings.ToUpper(tok.text) != "LIMIT" {
		panic(perrors.Wrapf(errors.ErrSyntax, "unexpected '%s'", tok.text))
	}

	tok, ok = t.next()
	if !ok {
		panic(errors.ErrBadLimit)
	}
	limit, err := strconv.Atoi(tok.text)
	if err != nil || limit < 0 {
		panic(perrors.Wrapf(errors.ErrBadLimit, "'%s'", tok.text))
	}
	q.Limit = limit
	return q
}
