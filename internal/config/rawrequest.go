package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/srtdog64/paramforge/internal/httpdata"
)

// RawRequest is the result of parsing a request file supplied with -r.
type RawRequest struct {
	Method  string
	URL     string
	Headers httpdata.Headers
	Body    string

	// DataType guessed from the Content-Type header ("json",
	// "urlencoded" or empty). JSON here is only a hint; see
	// Config.ProbablyJSON.
	DataType string
}

// ParseRequestFile parses a plain HTTP message: request line, headers,
// blank line, body. scheme is taken from --proto since the file carries
// none; splitBy overrides the default CRLF/LF line splitting.
//
// The Host header supplies the authority. Content-Length is dropped (the
// client recomputes it), and a Host header is not forwarded twice.
func ParseRequestFile(raw, scheme string, port int, splitBy string) (*RawRequest, error) {
	var lines []string
	if splitBy == "" {
		lines = strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	} else {
		lines = strings.Split(raw, splitBy)
	}

	if len(lines) == 0 {
		return nil, errors.New("request file is empty")
	}

	firstline := strings.SplitN(strings.TrimRight(lines[0], "\r"), " ", 3)
	if len(firstline) < 3 {
		return nil, errors.Errorf("unable to parse request line %q", lines[0])
	}
	method, path := firstline[0], firstline[1]

	out := &RawRequest{Method: method}

	var host string
	i := 1
	for ; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if line == "" {
			i++
			break
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, errors.Errorf("unable to parse header %q", line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(key) {
		case "content-type":
			if strings.Contains(value, "json") {
				out.DataType = "json"
			} else if strings.Contains(value, "urlencoded") {
				out.DataType = "urlencoded"
			}
		case "host":
			host = value
		case "content-length":
			continue
		}

		out.Headers.Set(key, value)
	}

	if host == "" {
		return nil, errors.New("request file has no Host header")
	}

	var body strings.Builder
	for ; i < len(lines); i++ {
		part := strings.TrimRight(lines[i], "\r")
		if part == "" {
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\r\n")
		}
		body.WriteString(part)
	}
	out.Body = body.String()

	out.URL = fmt.Sprintf("%s://%s:%d%s", scheme, host, port, path)

	return out, nil
}
