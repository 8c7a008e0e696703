package server

// FieldSet is an ordered collection of form fields. Field order and value
// order are both preserved, since they determine the order of the re-encoded
// pairs or multipart parts.
type FieldSet struct {
	fields []Field
	index  map[string]int
}

type Field struct {
	Name   string
	Values []FieldValue
}

// FieldValue is either a plain text value or an opaque file part.
type FieldValue struct {
	Text string
	File *FilePart
}

func (v FieldValue) IsFile() bool {
	return v.File != nil
}

// FilePart is an uploaded file carried through a multipart form.
type FilePart struct {
	Filename    string
	ContentType string
	Data        []byte
}

func NewFieldSet() *FieldSet {
	return &FieldSet{
		index: map[string]int{},
	}
}

// Add appends a text value to the named field. Repeated names accumulate
// values on the field created by the first occurrence.
func (fs *FieldSet) Add(name, value string) {
	fs.add(name, FieldValue{Text: value})
}

// AddFile appends a file part to the named field.
func (fs *FieldSet) AddFile(name string, part *FilePart) {
	fs.add(name, FieldValue{File: part})
}

func (fs *FieldSet) Len() int {
	return len(fs.fields)
}

// Fields returns the fields in insertion order.
func (fs *FieldSet) Fields() []Field {
	return fs.fields
}

func (fs *FieldSet) Values(name string) []FieldValue {
	i, ok := fs.index[name]
	if !ok {
		return nil
	}
	return fs.fields[i].Values
}

// Private

func (fs *FieldSet) add(name string, value FieldValue) {
	i, ok := fs.index[name]
	if !ok {
		fs.index[name] = len(fs.fields)
		fs.fields = append(fs.fields, Field{Name: name, Values: []FieldValue{value}})
		return
	}

	fs.fields[i].Values = append(fs.fields[i].Values, value)
}
