package classfile

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire form: CBOR encoding of class files and images
//
// Class files travel from the debuggee side as canonical CBOR wrapped in
// an envelope carrying a SHA-256 content hash; decoding verifies the
// hash before trusting the payload.
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("classfile: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type classFileEnvelope struct {
	Hash [32]byte `cbor:"1,keyasint"`
	Data []byte   `cbor:"2,keyasint"`
}

// HashClassFile computes the content hash of a class file's canonical
// encoding.
func HashClassFile(cf *ClassFile) ([32]byte, error) {
	data, err := cborEncMode.Marshal(cf)
	if err != nil {
		return [32]byte{}, fmt.Errorf("classfile: encode %s: %w", cf.Signature, err)
	}
	return sha256.Sum256(data), nil
}

// MarshalClassFile serializes a class file with its content hash.
func MarshalClassFile(cf *ClassFile) ([]byte, error) {
	data, err := cborEncMode.Marshal(cf)
	if err != nil {
		return nil, fmt.Errorf("classfile: encode %s: %w", cf.Signature, err)
	}
	env := classFileEnvelope{Hash: sha256.Sum256(data), Data: data}
	out, err := cborEncMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("classfile: encode envelope for %s: %w", cf.Signature, err)
	}
	return out, nil
}

// UnmarshalClassFile decodes an envelope, verifies the content hash, and
// returns the class file.
func UnmarshalClassFile(data []byte) (*ClassFile, error) {
	var env classFileEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal envelope: %w", err)
	}
	if sha256.Sum256(env.Data) != env.Hash {
		return nil, fmt.Errorf("classfile: content hash mismatch")
	}
	var cf ClassFile
	if err := cbor.Unmarshal(env.Data, &cf); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal class file: %w", err)
	}
	return &cf, nil
}

// Image is a set of class files shipped together, the unit a debuggee
// transport or a file on disk delivers.
type Image struct {
	Classes [][]byte `cbor:"1,keyasint"`
}

// MarshalImage encodes every class file individually (each with its own
// hash) and wraps them in one image.
func MarshalImage(classes []*ClassFile) ([]byte, error) {
	img := Image{Classes: make([][]byte, 0, len(classes))}
	for _, cf := range classes {
		enc, err := MarshalClassFile(cf)
		if err != nil {
			return nil, err
		}
		img.Classes = append(img.Classes, enc)
	}
	out, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("classfile: encode image: %w", err)
	}
	return out, nil
}

// UnmarshalImage decodes an image and verifies every contained class
// file.
func UnmarshalImage(data []byte) ([]*ClassFile, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("classfile: unmarshal image: %w", err)
	}
	out := make([]*ClassFile, 0, len(img.Classes))
	for i, enc := range img.Classes {
		cf, err := UnmarshalClassFile(enc)
		if err != nil {
			return nil, fmt.Errorf("classfile: image entry %d: %w", i, err)
		}
		out = append(out, cf)
	}
	return out, nil
}
