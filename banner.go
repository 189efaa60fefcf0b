package main

import (
	"crypto/x509"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

var (
	bold = color.New(color.Bold)
	cyan = color.New(color.FgCyan)
	warn = color.New(color.FgYellow)
)

func printBanner(w io.Writer, root string, port int, ip string) {
	bold.Fprintf(w, "Serving HTTPS on port %d\n", port)
	fmt.Fprintf(w, "  root: %s\n", root)
	warn.Fprintln(w, "Note: You may need to accept the self-signed certificate in your browser.")
	fmt.Fprint(w, "Access at: ")
	cyan.Fprintf(w, "https://localhost:%d", port)
	fmt.Fprint(w, " or ")
	cyan.Fprintf(w, "https://%s:%d\n", ip, port)
}

func printCertificate(w io.Writer, creds *Credentials, cert *x509.Certificate) {
	var sans []string
	sans = append(sans, cert.DNSNames...)
	for _, ip := range cert.IPAddresses {
		sans = append(sans, ip.String())
	}
	bold.Fprintf(w, "Generated certificate for %s\n", cert.Subject.CommonName)
	fmt.Fprintf(w, "  SANs:    %s\n", strings.Join(sans, ", "))
	fmt.Fprintf(w, "  serial:  %s\n", cert.SerialNumber.Text(16))
	fmt.Fprintf(w, "  expires: %s\n", cert.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(w, "  key:     %s\n", creds.KeyFile)
	fmt.Fprintf(w, "  cert:    %s\n", creds.CertFile)
}
