package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindProvider = "provider"
	KindTree     = "tree"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindProvider:
		return providerTemplate, nil
	case KindTree:
		return treeTemplate, nil
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

const providerTemplate = `listen_addr = ":9000"
admin_addr = "127.0.0.1:9090"
response_style = "nested"
echo_changes = true
keepalive_interval = "10s"
stream_interval = "100ms"
max_packet = 1024
outbound_queue = 256
tree_file = "tree.toml"
cors_origins = ["http://localhost:3000"]
tls_enabled = false
tls_mutual = false
tls_cert_file = ""
tls_key_file = ""
tls_ca_file = ""
`

const treeTemplate = `[[node]]
number = 1
identifier = "device"
description = "Sample device"

  [[node.parameter]]
  number = 1
  identifier = "gain"
  type = "integer"
  access = "readwrite"
  value = -20
  minimum = -128
  maximum = 15
  format = "%d dB"

  [[node.parameter]]
  number = 2
  identifier = "label"
  type = "string"
  value = "main"

  [[node.parameter]]
  number = 3
  identifier = "mode"
  type = "enum"
  access = "readwrite"
  enumeration = ["off", "on", "auto"]
  value = "auto"

  [[node.parameter]]
  number = 4
  identifier = "level"
  type = "real"
  minimum = -96.0
  maximum = 12.0
  value = -96.0
  stream_identifier = 1
  stream_format = "float32le"
  stream_offset = 0

  [[node.matrix]]
  number = 5
  identifier = "router"
  type = "oneToN"
  target_count = 4
  source_count = 4

    [[node.matrix.connection]]
    target = 0
    sources = [0]

  [[node.matrix]]
  number = 6
  identifier = "mixer"
  type = "nToN"
  dynamic = true
  target_count = 2
  source_count = 4
  max_connects_per_target = 4

  [[node.function]]
  number = 7
  identifier = "add"
  delegate = "sum"

    [[node.function.argument]]
    name = "a"
    type = "integer"

    [[node.function.argument]]
    name = "b"
    type = "integer"

    [[node.function.result]]
    name = "sum"
    type = "integer"

[[node]]
number = 2
identifier = "aux"

  [[node.node]]
  number = 1
  identifier = "spare"
  offline = true
`
