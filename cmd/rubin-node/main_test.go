package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"btccore.dev/node/node"
)

func TestPrintConfigEncodesValidJSON(t *testing.T) {
	var out bytes.Buffer
	cfg := node.DefaultConfig()

	if err := printConfig(&out, cfg); err != nil {
		t.Fatalf("printConfig: %v", err)
	}

	var decoded node.Config
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Network != cfg.Network || decoded.DataDir != cfg.DataDir {
		t.Fatalf("round trip mismatch: got %+v want %+v", decoded, cfg)
	}
}
