package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"go-kvtree/config"
	"go-kvtree/server/connection"
	"go-kvtree/services"
	"go-kvtree/services/parser"
	"go-kvtree/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const PROTOCOL = "tcp"

// Server accepts statements over TCP and answers them with the executor.
// Writes from all connections are serialized by the tree lock.
type Server struct {
	services *services.Services
	listener net.Listener

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(configs *config.ServerConfig, svc *services.Services) (*Server, error) {
	url := fmt.Sprintf("%v:%v", configs.Host, configs.Port)
	listen, err := net.Listen(PROTOCOL, url)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to listen on '%s'", url)
	}

	return &Server{
		services: svc,
		listener: listen,
		conns:    map[net.Conn]struct{}{},
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start runs the accept loop in the background. The channel yields the
// error that stopped it, or nil after Close.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	logger.L.WithField("addr", s.Addr()).Info("server started")

	go func() {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.isClosed() {
					err = nil
				}
				errCh <- err
				return
			}

			if !s.track(conn) {
				conn.Close()
				continue
			}
			go s.handleConnection(connection.NewConnection(conn))
		}
	}()

	return errCh
}

// Close stops accepting, drops open connections and waits for their
// handlers to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) handleConnection(c *connection.Connection) {
	conn := c.Conn
	log := logger.L.WithField("client", conn.RemoteAddr())
	log.Debug("client connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()

		conn.Close()
		log.Debug("client disconnected")
		s.wg.Done()
	}()

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(parser.QueryDivider)

	for sc.Scan() {
		stmt := strings.TrimSpace(sc.Text())
		if stmt == "" {
			continue
		}

		if err := s.exec(c, stmt); err != nil {
			log.WithError(err).Warn("error while responding to client")
			return
		}
	}

	if err := sc.Err(); err != nil && !s.isClosed() {
		log.WithError(err).Warn("error while reading statements")
	}
}

func (s *Server) exec(c *connection.Connection, stmt string) error {
	q, err := s.services.ParserService.ParseQuery([]byte(stmt))
	if err != nil {
		return c.SendError(err)
	}

	res, err := s.services.ExecutorService.Exec(q)
	if err != nil {
		logger.L.WithFields(logrus.Fields{
			"type":  q.GetType(),
			"error": err,
		}).Debug("query failed")
		return c.SendError(err)
	}
	return c.SendResult(res)
}
