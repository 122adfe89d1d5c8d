package detection

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// parseGRPCEndpoint normalizes host[:port] or URL forms into a dial target and
// picks TLS for https schemes and the usual TLS ports
func parseGRPCEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", nil, fmt.Errorf("empty endpoint")
	}

	// Add scheme if missing
	if !strings.Contains(endpoint, "://") {
		if strings.Contains(endpoint, ":") {
			parts := strings.Split(endpoint, ":")
			scheme := "http://"
			if len(parts) == 2 {
				if port, err := strconv.Atoi(parts[1]); err == nil && (port == 443 || port == 8443 || port == 9443) {
					scheme = "https://"
				}
			}
			endpoint = scheme + endpoint
		} else {
			endpoint = "https://" + endpoint + ":443"
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	host := u.Host
	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "https":
		if u.Port() == "" {
			host = u.Hostname() + ":443"
		}
		creds = credentials.NewTLS(&tls.Config{ServerName: u.Hostname()})
	case "http":
		if u.Port() == "" {
			host = u.Hostname() + ":80"
		}
		creds = insecure.NewCredentials()
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	return host, creds, nil
}
