// Package molfile reads and writes molecule documents as YAML.  JSON input
// is accepted as well since it is a subset of YAML.  A stream may hold
// several documents separated by "---", which is how batch targets are
// supplied.
package molfile

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/molmatch/pkg/errors"
	mtypes "github.com/turtacn/molmatch/pkg/types/molecule"
)

// Decoder reads GraphDocuments one at a time from a stream.
type Decoder struct {
	dec   *yaml.Decoder
	index int
}

// NewDecoder returns a Decoder reading from r.  Unknown fields are errors.
func NewDecoder(r io.Reader) *Decoder {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	return &Decoder{dec: dec}
}

// Next returns the next non-empty document, or io.EOF when the stream is
// exhausted.
func (d *Decoder) Next() (*mtypes.GraphDocument, error) {
	for {
		var doc mtypes.GraphDocument
		err := d.dec.Decode(&doc)
		if err == io.EOF {
			return nil, io.EOF
		}
		d.index++
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeMoleculeParsingFailed, "failed to decode molecule document").
				WithDetailf("document=%d", d.index)
		}
		if isEmpty(&doc) {
			continue
		}
		return &doc, nil
	}
}

func isEmpty(doc *mtypes.GraphDocument) bool {
	return doc.ID == "" && doc.Name == "" && len(doc.Components) == 0
}

// ReadAll decodes every document in r.
func ReadAll(r io.Reader) ([]*mtypes.GraphDocument, error) {
	d := NewDecoder(r)
	var docs []*mtypes.GraphDocument
	for {
		doc, err := d.Next()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// Decode decodes exactly one document from data.
func Decode(data []byte) (*mtypes.GraphDocument, error) {
	docs, err := ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	switch len(docs) {
	case 0:
		return nil, errors.New(errors.CodeMoleculeParsingFailed, "no molecule document found")
	case 1:
		return docs[0], nil
	default:
		return nil, errors.New(errors.CodeMoleculeParsingFailed, "expected a single molecule document").
			WithDetailf("documents=%d", len(docs))
	}
}

// Open opens path for streaming with a Decoder.  The caller closes the
// returned file.
func Open(path string) (*os.File, *Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		code := errors.CodeInternal
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return nil, nil, errors.Wrap(err, code, "failed to open molecule file").WithDetailf("path=%s", path)
	}
	return f, NewDecoder(f), nil
}

// ReadFile decodes every document in the file at path.
func ReadFile(path string) ([]*mtypes.GraphDocument, error) {
	f, _, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to read molecule file").WithDetailf("path=%s", path)
	}
	return docs, nil
}

// ReadOne decodes the single document in the file at path.
func ReadOne(path string) (*mtypes.GraphDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := errors.CodeInternal
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return nil, errors.Wrap(err, code, "failed to read molecule file").WithDetailf("path=%s", path)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "invalid molecule file").WithDetailf("path=%s", path)
	}
	return doc, nil
}

// WriteAll encodes docs to w as a multi-document YAML stream.
func WriteAll(w io.Writer, docs ...*mtypes.GraphDocument) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.CodeSerialization, "failed to encode molecule document")
		}
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to flush molecule documents")
	}
	return nil
}
