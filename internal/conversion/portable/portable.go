// Package portable implements the serialized envelope for framework-independent
// model representations: a fixed magic, a little-endian header length, a JSON
// signature header and an opaque graph payload. Conversion backends emit this
// layout and the inference session reads its declared signatures back.
package portable

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	// FormatVersion is written into every envelope this build produces.
	FormatVersion = "1.4.0"

	headerSizeBytes = 8
	maxHeaderSize   = 16 << 20
)

var magic = []byte{'P', 'M', 'D', 'L'}

var (
	ErrBadMagic    = errors.New("portable model: bad magic")
	ErrBadHeader   = errors.New("portable model: malformed header")
	ErrTruncated   = errors.New("portable model: truncated payload")
	ErrNoSignature = errors.New("portable model: no input/output signatures declared")
)

// TensorInfo describes one declared input or output tensor. A dimension of -1
// marks a symbolic (batch/dynamic) axis.
type TensorInfo struct {
	Name  string  `json:"name"`
	Dtype string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}

// Header is the JSON signature header of the envelope.
type Header struct {
	FormatVersion    string       `json:"format_version"`
	Producer         string       `json:"producer"`
	Framework        string       `json:"framework"`
	FrameworkVersion string       `json:"framework_version,omitempty"`
	Inputs           []TensorInfo `json:"inputs"`
	Outputs          []TensorInfo `json:"outputs"`
}

// Model is a loaded portable model.
type Model struct {
	Header  Header
	Payload []byte
}

// Encode serializes a header and graph payload into envelope bytes.
func Encode(h Header, payload []byte) ([]byte, error) {
	if h.FormatVersion == "" {
		h.FormatVersion = FormatVersion
	}
	hdr, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("portable model: encoding header: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(magic)+headerSizeBytes+len(hdr)+len(payload)))
	buf.Write(magic)
	var size [headerSizeBytes]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(hdr)))
	buf.Write(size[:])
	buf.Write(hdr)
	buf.Write(payload)
	return buf.Bytes(), nil
}

// Load parses envelope bytes into a Model.
func Load(b []byte) (*Model, error) {
	if len(b) < len(magic)+headerSizeBytes {
		return nil, ErrTruncated
	}
	if !bytes.Equal(b[:len(magic)], magic) {
		return nil, ErrBadMagic
	}
	hdrLen := binary.LittleEndian.Uint64(b[len(magic) : len(magic)+headerSizeBytes])
	if hdrLen > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d", ErrBadHeader, hdrLen)
	}
	rest := b[len(magic)+headerSizeBytes:]
	if uint64(len(rest)) < hdrLen {
		return nil, ErrTruncated
	}
	var h Header
	if err := json.Unmarshal(rest[:hdrLen], &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	payload := make([]byte, len(rest)-int(hdrLen))
	copy(payload, rest[hdrLen:])
	return &Model{Header: h, Payload: payload}, nil
}

// LoadFile reads and parses an envelope from disk.
func LoadFile(path string) (*Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(b)
}

// CheckModel validates the structural integrity of an exported envelope
// without retaining it in memory.
func CheckModel(path string) error {
	m, err := LoadFile(path)
	if err != nil {
		return err
	}
	if len(m.Header.Inputs) == 0 && len(m.Header.Outputs) == 0 {
		return ErrNoSignature
	}
	return nil
}

// Bytes re-encodes the model into envelope bytes.
func (m *Model) Bytes() ([]byte, error) {
	return Encode(m.Header, m.Payload)
}

// Session is a loaded, queryable handle to a portable model exposing its
// declared input and output signatures.
type Session struct {
	model *Model
}

// NewSession builds an inference session from a loaded model. It fails when
// the model declares no signatures at all.
func NewSession(m *Model) (*Session, error) {
	if m == nil {
		return nil, ErrNoSignature
	}
	if len(m.Header.Inputs) == 0 && len(m.Header.Outputs) == 0 {
		return nil, ErrNoSignature
	}
	return &Session{model: m}, nil
}

// Inputs returns the declared input signatures.
func (s *Session) Inputs() []TensorInfo {
	return s.model.Header.Inputs
}

// Outputs returns the declared output signatures.
func (s *Session) Outputs() []TensorInfo {
	return s.model.Header.Outputs
}

// Model returns the underlying portable model.
func (s *Session) Model() *Model {
	return s.model
}
