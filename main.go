package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type Config struct {
	root         string
	certDir      string
	keyFile      string
	certFile     string
	port         int
	probeAddr    string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

var (
	mainCmd = &cobra.Command{
		Use:   "servehttps",
		Short: "Serve a directory over HTTPS with a fresh self-signed certificate.",
		Long: `Generates a new RSA key and self-signed certificate for localhost, 127.0.0.1 and
the machine's LAN address, then serves the directory over HTTPS. Every response
carries permissive CORS headers. Meant for local development only.`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: setLogLevel,
		Run:               runServe,
	}

	genCmd = &cobra.Command{
		Use:   "generate",
		Short: "Write a new key and self-signed certificate without serving.",
		Args:  cobra.NoArgs,
		Run:   runGen,
	}
)

func init() {
	mainCmd.PersistentFlags().StringP("dir", "d", "", "Root directory. Files under it are served. Defaults to the directory containing the executable.")
	mainCmd.PersistentFlags().String("cert-dir", "", "Directory for the key and certificate files. Defaults to the root directory.")
	mainCmd.PersistentFlags().String("key-file", "key.pem", "Private key file name. Overwritten on every start.")
	mainCmd.PersistentFlags().String("cert-file", "cert.pem", "Certificate file name. Overwritten on every start.")
	mainCmd.PersistentFlags().String("probe-addr", defaultProbeAddr, "UDP address used to find the outbound local IP. No data is sent.")
	mainCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error).")
	mainCmd.Flags().IntP("port", "p", defaultPort, "Port to listen on, all interfaces.")
	mainCmd.Flags().Duration("read-timeout", 0, "Per-request read deadline. 0 disables it.")
	mainCmd.Flags().Duration("write-timeout", 0, "Per-response write deadline. 0 disables it.")
}

func setLogLevel(cmd *cobra.Command, args []string) error {
	s, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// defaultRoot is the directory holding the running binary.
func defaultRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func getConfig(cmd *cobra.Command) (*Config, error) {
	var err error
	var c Config
	c.root, err = cmd.Flags().GetString("dir")
	if err != nil {
		return nil, err
	}
	if c.root == "" {
		c.root, err = defaultRoot()
		if err != nil {
			return nil, err
		}
	}
	c.root, err = filepath.Abs(c.root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(c.root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", c.root)
	}
	c.certDir, err = cmd.Flags().GetString("cert-dir")
	if err != nil {
		return nil, err
	}
	if c.certDir == "" {
		c.certDir = c.root
	}
	c.keyFile, err = cmd.Flags().GetString("key-file")
	if err != nil {
		return nil, err
	}
	c.certFile, err = cmd.Flags().GetString("cert-file")
	if err != nil {
		return nil, err
	}
	c.probeAddr, err = cmd.Flags().GetString("probe-addr")
	if err != nil {
		return nil, err
	}

	// serve-only flags; generate does not define them
	if f := cmd.Flags().Lookup("port"); f != nil {
		c.port, err = cmd.Flags().GetInt("port")
		if err != nil {
			return nil, err
		}
		if c.port < 0 || c.port > 65535 {
			return nil, fmt.Errorf("invalid port %d", c.port)
		}
		c.readTimeout, err = cmd.Flags().GetDuration("read-timeout")
		if err != nil {
			return nil, err
		}
		c.writeTimeout, err = cmd.Flags().GetDuration("write-timeout")
		if err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// provision discovers the local IP and writes fresh credentials.
func (c *Config) provision(ctx context.Context, p Provisioner) (*Credentials, string, error) {
	ip := NewLocalIPResolver(c.probeAddr).Discover(ctx)
	creds, err := p.Provision(NewIdentity(ip))
	if err != nil {
		return nil, "", err
	}
	return creds, ip.String(), nil
}

func (c *Config) provisioner() Provisioner {
	return &SelfSignedProvisioner{Dir: c.certDir, KeyFile: c.keyFile, CertFile: c.certFile}
}

func runServe(cmd *cobra.Command, args []string) {
	c, err := getConfig(cmd)
	if err != nil {
		log.Fatalln(err)
	}

	creds, ip, err := c.provision(cmd.Context(), c.provisioner())
	if err != nil {
		log.WithError(err).Fatalln("certificate generation failed; check that", c.certDir, "exists and is writable")
	}

	srv, err := NewServer(ServerConfig{
		Addr:         ":" + strconv.Itoa(c.port),
		Root:         c.root,
		Credentials:  creds,
		ReadTimeout:  c.readTimeout,
		WriteTimeout: c.writeTimeout,
	})
	if err != nil {
		log.Fatalln(err)
	}
	l, err := srv.Listen()
	if err != nil {
		log.Fatalln(err)
	}

	printBanner(os.Stdout, c.root, c.port, ip)
	log.Fatalln(srv.Serve(l))
}

func runGen(cmd *cobra.Command, args []string) {
	c, err := getConfig(cmd)
	if err != nil {
		log.Fatalln(err)
	}

	creds, _, err := c.provision(cmd.Context(), c.provisioner())
	if err != nil {
		log.WithError(err).Fatalln("certificate generation failed; check that", c.certDir, "exists and is writable")
	}
	cert, err := LoadCertificate(creds.CertFile)
	if err != nil {
		log.Fatalln(err)
	}
	printCertificate(os.Stdout, creds, cert)
}

func main() {
	mainCmd.AddCommand(genCmd)
	if err := mainCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
