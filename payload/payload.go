// Package payload defines the signed claim carried by a watermark and its
// canonical byte encoding. The encoding is deterministic: the same logical
// values always serialize to byte-identical output, which signature
// verification depends on.
package payload

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Version is the current payload encoding version.
const Version byte = 0x01

// HashSize is the required length of a document hash.
const HashSize = 32

// maxFieldLen bounds variable-length string fields in the canonical form.
const maxFieldLen = 1024

var (
	// ErrEmptyIssuer is returned when the issuer identifier is empty.
	ErrEmptyIssuer = errors.New("issuer identifier is empty")

	// ErrZeroTimestamp is returned when the timestamp is the zero instant.
	ErrZeroTimestamp = errors.New("timestamp is zero")

	// ErrFieldTooLong is returned when a string field exceeds the encodable length.
	ErrFieldTooLong = errors.New("field exceeds maximum encodable length")
)

// Payload is the claim an issuer signs about a document.
//
// DocHash is an issuer-side record of the original document's hash for audit
// trail. It is not re-derived from a received carrier at verification time;
// carrier pixels are expected to change under lossy transforms while the
// claim stays verifiable.
type Payload struct {
	DocHash   [HashSize]byte
	Issuer    string
	Timestamp time.Time
	DocID     string
}

// New builds a Payload and validates its fields. The timestamp is truncated
// to whole seconds in UTC so the canonical form round-trips through RFC3339.
func New(docHash [HashSize]byte, issuer string, timestamp time.Time, docID string) (*Payload, error) {
	p := &Payload{
		DocHash:   docHash,
		Issuer:    issuer,
		Timestamp: timestamp.UTC().Truncate(time.Second),
		DocID:     docID,
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Payload) validate() error {
	if p.Issuer == "" {
		return ErrEmptyIssuer
	}
	if len(p.Issuer) > maxFieldLen {
		return fmt.Errorf("failed to validate issuer: %w", ErrFieldTooLong)
	}
	if len(p.DocID) > maxFieldLen {
		return fmt.Errorf("failed to validate doc id: %w", ErrFieldTooLong)
	}
	if p.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// Canonical returns the deterministic byte encoding of the payload.
//
// Layout (big-endian): version byte, 32-byte document hash, int64
// unix-seconds timestamp, uint16-prefixed issuer bytes, doc-id presence
// byte followed by uint16-prefixed doc-id bytes when present.
func (p *Payload) Canonical() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(Version)
	buf.Write(p.DocHash[:])

	ts := p.Timestamp.UTC().Truncate(time.Second).Unix()
	if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
		return nil, fmt.Errorf("failed to encode timestamp: %w", err)
	}

	if err := writeString(&buf, p.Issuer); err != nil {
		return nil, fmt.Errorf("failed to encode issuer: %w", err)
	}

	if p.DocID == "" {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		if err := writeString(&buf, p.DocID); err != nil {
			return nil, fmt.Errorf("failed to encode doc id: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a canonical payload encoding. It is the strict inverse of
// Canonical: trailing bytes, truncated fields, and unknown versions are
// rejected.
func Decode(data []byte) (*Payload, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read payload version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported payload version %d", version)
	}

	var p Payload
	if _, err := io.ReadFull(r, p.DocHash[:]); err != nil {
		return nil, fmt.Errorf("failed to read doc hash: %w", err)
	}

	var ts int64
	if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
		return nil, fmt.Errorf("failed to read timestamp: %w", err)
	}
	p.Timestamp = time.Unix(ts, 0).UTC()

	issuer, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read issuer: %w", err)
	}
	p.Issuer = issuer

	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read doc id flag: %w", err)
	}
	switch present {
	case 0:
	case 1:
		docID, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read doc id: %w", err)
		}
		p.DocID = docID
	default:
		return nil, fmt.Errorf("invalid doc id flag %d", present)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("unexpected %d trailing bytes", r.Len())
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return ErrFieldTooLong
	}
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(s)))
	buf.Write(length[:])
	buf.WriteString(s)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}
	if int(length) > maxFieldLen {
		return "", ErrFieldTooLong
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
