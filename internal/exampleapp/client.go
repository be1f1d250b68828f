package exampleapp

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-cleanhttp"
)

// GetClient returns an HTTP client that also trusts the certificates in
// the 'cacert' PEM bundle, if given
func GetClient(cacert string) (*http.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()

	if cacert != "" {
		data, err := os.ReadFile(cacert)
		if err != nil {
			return nil, err
		}
		certPool, err := x509.SystemCertPool()
		if err != nil || certPool == nil {
			certPool = x509.NewCertPool()
		}
		if !certPool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf(
				"could not load certificates from file '%s'",
				cacert,
			)
		}

		transport.TLSClientConfig = &tls.Config{RootCAs: certPool}
	}

	return &http.Client{Transport: transport}, nil
}
