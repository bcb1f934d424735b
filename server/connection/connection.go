package connection

import (
	"bytes"
	"io"
	"net"

	"go-kvtree/util/response"

	"github.com/pkg/errors"
)

// Every statement is answered with two response lines: a status and a body
// holding either the output or the error message.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Connection struct {
	Conn net.Conn
	w    *response.Writer
}

func NewConnection(conn net.Conn) *Connection {
	return &Connection{
		Conn: conn,
		w:    response.NewWriter(conn),
	}
}

func (c *Connection) Send(blob []byte) error {
	return errors.Wrap(c.w.WriteLine(blob), "failed to send response")
}

func (c *Connection) SendResult(res io.WriterTo) error {
	buf := &bytes.Buffer{}
	if _, err := res.WriteTo(buf); err != nil {
		return c.SendError(err)
	}

	if err := c.Send([]byte(StatusOK)); err != nil {
		return err
	}
	return c.Send(buf.Bytes())
}

func (c *Connection) SendError(err error) error {
	if e := c.Send([]byte(StatusError)); e != nil {
		return e
	}
	return c.Send([]byte(err.Error()))
}
