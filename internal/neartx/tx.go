package neartx

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

// Borsh action enum tags, in near-primitives declaration order.
const (
	actionTagFunctionCall byte = 2
	actionTagTransfer     byte = 3
)

const ed25519KeyType byte = 0

// Action is one transaction action. Exactly one of the variants is set.
type Action struct {
	FunctionCall *FunctionCall
	Transfer     *Transfer
}

type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	// Attached deposit in yoctoNEAR, as a decimal string (u128 range).
	DepositYocto string
}

type Transfer struct {
	DepositYocto string
}

// Transaction is the unsigned NEAR transaction wire structure.
type Transaction struct {
	SignerID   string
	PublicKey  []byte // 32-byte ed25519
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []Action
}

// Serialize borsh-encodes the transaction.
func (t Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, t.SignerID)
	buf.WriteByte(ed25519KeyType)
	if len(t.PublicKey) != ed25519.PublicKeySize {
		return nil, clierr.New(clierr.CodeInternal, fmt.Sprintf("public key is %d bytes, want %d", len(t.PublicKey), ed25519.PublicKeySize))
	}
	buf.Write(t.PublicKey)
	writeUint64(&buf, t.Nonce)
	writeString(&buf, t.ReceiverID)
	buf.Write(t.BlockHash[:])

	writeUint32(&buf, uint32(len(t.Actions)))
	for _, action := range t.Actions {
		if err := writeAction(&buf, action); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Sign serializes the transaction, signs sha256 of the encoding, and returns
// the borsh-encoded SignedTransaction ready for broadcast.
func Sign(t Transaction, key KeyPair) ([]byte, error) {
	raw, err := t.Serialize()
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(raw)
	signature := ed25519.Sign(key.PrivateKey, digest[:])

	var buf bytes.Buffer
	buf.Write(raw)
	buf.WriteByte(ed25519KeyType)
	buf.Write(signature)
	return buf.Bytes(), nil
}

func writeAction(buf *bytes.Buffer, action Action) error {
	switch {
	case action.FunctionCall != nil:
		fc := action.FunctionCall
		buf.WriteByte(actionTagFunctionCall)
		writeString(buf, fc.MethodName)
		writeUint32(buf, uint32(len(fc.Args)))
		buf.Write(fc.Args)
		writeUint64(buf, fc.Gas)
		return writeU128(buf, fc.DepositYocto)
	case action.Transfer != nil:
		buf.WriteByte(actionTagTransfer)
		return writeU128(buf, action.Transfer.DepositYocto)
	default:
		return clierr.New(clierr.CodeInternal, "transaction action has no variant set")
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// writeU128 encodes a non-negative decimal string as a 16-byte little-endian
// unsigned integer.
func writeU128(buf *bytes.Buffer, decimal string) error {
	if decimal == "" {
		decimal = "0"
	}
	n, ok := new(big.Int).SetString(decimal, 10)
	if !ok || n.Sign() < 0 || n.Cmp(maxU128) > 0 {
		return clierr.New(clierr.CodeInternal, fmt.Sprintf("deposit %q is not a valid u128", decimal))
	}
	var b [16]byte
	n.FillBytes(b[:])
	// FillBytes is big-endian; borsh wants little-endian.
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	buf.Write(b[:])
	return nil
}
