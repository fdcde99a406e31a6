// Package netutil builds the HTTP clients used for probing: the shared
// primary client with its cookie jar, and the separate replay client.
package netutil

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"
)

// ClientOptions selects transport behavior for one client.
type ClientOptions struct {
	// Proxy URL (http://, https:// or socks5://); empty for direct.
	Proxy string

	Timeout time.Duration

	FollowRedirects bool

	// HTTPVersion pins the protocol: "1.1", "2" or empty to negotiate.
	HTTPVersion string
}

// NewClient builds a probing client. Certificate validation is disabled:
// discovery targets routinely sit behind self-signed staging certs, and
// we are comparing responses, not trusting them.
func NewClient(opts ClientOptions) (*http.Client, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid proxy %q", opts.Proxy)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	switch opts.HTTPVersion {
	case "2":
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, errors.Wrap(err, "configuring http2 transport")
		}
		transport.ForceAttemptHTTP2 = true
	case "1.1":
		// an empty (non-nil) TLSNextProto map disables the h2 upgrade
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	case "":
	default:
		return nil, errors.Errorf("unsupported http version %q", opts.HTTPVersion)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   opts.Timeout,
	}

	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}
