package main

import (
	"crypto/tls"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultPort = 3000

type ServerConfig struct {
	Addr         string
	Root         string
	Credentials  *Credentials
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves a directory over TLS. The key pair is read once in NewServer;
// nothing on the Server changes after that.
type Server struct {
	addr      string
	tlsConfig *tls.Config
	srv       *http.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("no credentials")
	}
	cert, err := tls.LoadX509KeyPair(cfg.Credentials.CertFile, cfg.Credentials.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", defaultPort)
	}

	// handshake failures and malformed requests end up here
	errLog := stdlog.New(log.StandardLogger().WriterLevel(log.DebugLevel), "", 0)

	return &Server{
		addr: addr,
		tlsConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
		srv: &http.Server{
			Handler:           NewStaticHandler(cfg.Root),
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ReadHeaderTimeout: 30 * time.Second,
			ErrorLog:          errLog,
		},
	}, nil
}

// Listen binds a TCP listener on the configured address and wraps it so every
// accepted connection does a server handshake first.
func (s *Server) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	log.Debugln("Listening on", l.Addr())
	return tls.NewListener(l, s.tlsConfig), nil
}

// Serve accepts connections on l until the listener fails or Close is called.
func (s *Server) Serve(l net.Listener) error {
	return s.srv.Serve(l)
}

func (s *Server) ListenAndServe() error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(l)
}

func (s *Server) Close() error {
	return s.srv.Close()
}
