package consensus

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"

	"btccore.dev/node/crypto"
)

func signVerifyFixtureTx() *Tx {
	return &Tx{
		Version: 1,
		Inputs: []TxInput{
			{PrevOut: Outpoint{Hash: [32]byte{7}, Index: 0}, Sequence: 0xFFFFFFFF},
		},
		Outputs: []TxOutput{
			{Value: 4000, Script: []byte{0x51}},
		},
		Locktime: 0,
	}
}

func TestSignVerifyRoundTripP2PKCompressed(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeCompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	if err := SignP2PK(p, tx, 0, priv.Serialize(), pubkey, SighashAll); err != nil {
		t.Fatalf("SignP2PK: %v", err)
	}

	coin := Coin{Value: 1000, Script: pubkeyToP2PKScript(pubkey)}
	if err := VerifyInput(p, tx, 0, coin, 0, nil); err != nil {
		t.Fatalf("VerifyInput p2pk-compressed: %v", err)
	}
}

func TestSignVerifyRoundTripP2PKUncompressed(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeUncompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	if err := SignP2PK(p, tx, 0, priv.Serialize(), pubkey, SighashAll); err != nil {
		t.Fatalf("SignP2PK: %v", err)
	}

	coin := Coin{Value: 1000, Script: pubkeyToP2PKScript(pubkey)}
	if err := VerifyInput(p, tx, 0, coin, 0, nil); err != nil {
		t.Fatalf("VerifyInput p2pk-uncompressed: %v", err)
	}
}

func TestSignVerifyRoundTripP2PKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeCompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	if err := SignP2PKH(p, tx, 0, priv.Serialize(), pubkey, SighashAll); err != nil {
		t.Fatalf("SignP2PKH: %v", err)
	}

	coin := Coin{Value: 1000, Script: P2PKHScript(hash160(pubkey))}
	if err := VerifyInput(p, tx, 0, coin, 0, nil); err != nil {
		t.Fatalf("VerifyInput p2pkh: %v", err)
	}
}

func TestSignVerifyRoundTripP2WPKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeCompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	cache := &SighashCache{}
	if err := SignP2WPKH(p, tx, 0, priv.Serialize(), pubkey, 1000, SighashAll, cache); err != nil {
		t.Fatalf("SignP2WPKH: %v", err)
	}

	coin := Coin{Value: 1000, Script: P2WPKHScript(hash160(pubkey))}
	if err := VerifyInput(p, tx, 0, coin, FlagWitness, cache); err != nil {
		t.Fatalf("VerifyInput p2wpkh: %v", err)
	}
}

func TestSignVerifyRoundTripP2SHP2WPKH(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeCompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	cache := &SighashCache{}
	if err := SignP2SHP2WPKH(p, tx, 0, priv.Serialize(), pubkey, 1000, SighashAll, cache); err != nil {
		t.Fatalf("SignP2SHP2WPKH: %v", err)
	}

	scriptHash := hash160(P2WPKHScript(hash160(pubkey)))
	coin := Coin{Value: 1000, Script: P2SHScript(scriptHash)}
	if err := VerifyInput(p, tx, 0, coin, FlagP2SH|FlagWitness, cache); err != nil {
		t.Fatalf("VerifyInput p2sh-p2wpkh: %v", err)
	}
}

func TestVerifyInputRejectsWrongKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	other, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	pubkey := priv.PubKey().SerializeCompressed()
	wrongPubkey := other.PubKey().SerializeCompressed()

	tx := signVerifyFixtureTx()
	p := crypto.SignerProvider{}
	if err := SignP2PKH(p, tx, 0, priv.Serialize(), pubkey, SighashAll); err != nil {
		t.Fatalf("SignP2PKH: %v", err)
	}

	coin := Coin{Value: 1000, Script: P2PKHScript(hash160(wrongPubkey))}
	if err := VerifyInput(p, tx, 0, coin, 0, nil); err == nil {
		t.Fatalf("expected VerifyInput to reject a pubkey-hash mismatch")
	}
}
