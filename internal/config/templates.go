package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "client":
		return clientTemplate, nil
	case "secure":
		return secureTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const clientTemplate = `id = "syncwsctl"
log_level = "info"

connect_attempts = 3
connect_timeout = "10s"
reconnect_attempts = 0
backoff_initial = "250ms"
backoff_multiplier = 2.0
backoff_max = "5s"
backoff_jitter = true

security_mode = "development"
handshake_timeout = "10s"
write_timeout = "10s"
read_limit = 67108864
binary_messages = false
enable_compression = false

response_timeout = "5s"
max_in_flight = 1
stop_on_error = false

admin_addr = ""
admin_token = ""
cors_origins = ["http://localhost:3000"]

[tls]
ca_file = ""
cert_file = ""
key_file = ""
server_name = ""
insecure_skip_verify = false
`

const secureTemplate = `id = "syncwsctl"
log_level = "info"

connect_attempts = 3
connect_timeout = "10s"
reconnect_attempts = 5

security_mode = "production"

admin_addr = "127.0.0.1:9110"

[tls]
ca_file = "certs/ca.pem"
cert_file = ""
key_file = ""
server_name = ""
insecure_skip_verify = false
`
