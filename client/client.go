// Package client talks to a kvtree server.
package client

import (
	"bufio"
	"bytes"
	"net"
	"strings"

	"go-kvtree/server/connection"
	"go-kvtree/services/parser"
	"go-kvtree/util/response"

	"github.com/pkg/errors"
)

var ErrRemote = errors.New("remote error")

type Client struct {
	conn net.Conn
	res  *response.Reader
}

func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dial failed")
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetKeepAlive(true); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "unable to set keepalive")
		}
	}

	return &Client{conn: conn, res: response.NewReader(conn)}, nil
}

// Exec sends every statement of stmts and returns their joined output. It
// stops at the first statement the server rejects.
func (c *Client) Exec(stmts string) (string, error) {
	sc := bufio.NewScanner(strings.NewReader(stmts))
	sc.Split(parser.QueryDivider)

	out := &strings.Builder{}
	for sc.Scan() {
		stmt := bytes.TrimSpace(sc.Bytes())
		if len(stmt) == 0 {
			continue
		}

		body, err := c.query(stmt)
		if err != nil {
			return out.String(), err
		}
		out.Write(body)
	}
	return out.String(), sc.Err()
}

func (c *Client) query(stmt []byte) ([]byte, error) {
	msg := make([]byte, 0, len(stmt)+1)
	msg = append(append(msg, stmt...), '\n')
	if _, err := c.conn.Write(msg); err != nil {
		return nil, errors.Wrap(err, "failed to send statement")
	}

	status, err := c.res.ReadLine()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read status")
	}
	ok := string(status) == connection.StatusOK

	body, err := c.res.ReadLine()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if !ok {
		return nil, errors.WithMessage(ErrRemote, string(body))
	}
	return bytes.Clone(body), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
