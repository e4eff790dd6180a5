// Package image stores compiled programs on disk.
//
// An image is a single CBOR document holding a header and the program. The
// encoding is canonical so the same program and header always produce the
// same bytes.
package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/tut/pkg/bytecode"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Format identifies tut program images.
const Format = "tut-image"

// Extension is the conventional file extension for images.
const Extension = ".tutc"

var (
	// ErrFormat is returned when the data is not a tut image.
	ErrFormat = errors.New("not a tut image")
	// ErrVersion is returned for images built for another instruction set.
	ErrVersion = errors.New("unsupported program version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Header describes an image.
type Header struct {
	Format  string    `cbor:"format"`
	Version uint16    `cbor:"version"`
	BuildID uuid.UUID `cbor:"build_id"`
	Created time.Time `cbor:"created"`
	// Entry is the name of the root module the program was compiled from.
	Entry string `cbor:"entry,omitempty"`
}

// Image is a program plus its header.
type Image struct {
	Header  Header            `cbor:"header"`
	Program *bytecode.Program `cbor:"program"`
}

// New wraps prog in an image with a fresh build ID.
func New(prog *bytecode.Program, entry string) *Image {
	return &Image{
		Header: Header{
			Format:  Format,
			Version: prog.Version,
			BuildID: uuid.New(),
			Created: time.Now().UTC().Truncate(time.Second),
			Entry:   entry,
		},
		Program: prog,
	}
}

// Marshal serializes img to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	if img.Program == nil {
		return nil, errors.New("image: no program")
	}
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes and validates an image.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Header.Format != Format || img.Program == nil {
		return nil, ErrFormat
	}
	if img.Header.Version != bytecode.Version || img.Program.Version != bytecode.Version {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrVersion, img.Header.Version, bytecode.Version)
	}
	if err := img.Program.Validate(); err != nil {
		return nil, fmt.Errorf("image: invalid program: %w", err)
	}
	return &img, nil
}

// Write encodes img to w.
func Write(w io.Writer, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Read decodes an image from r.
func Read(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: read: %w", err)
	}
	return Unmarshal(data)
}

// WriteFile writes img to path.
func WriteFile(path string, img *Image) error {
	data, err := Marshal(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("image: write %s: %w", path, err)
	}
	return nil
}

// ReadFile reads the image at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
