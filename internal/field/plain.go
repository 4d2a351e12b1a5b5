package field

// plainField is registered for metadata but accepts no REST operations.
type plainField struct {
	base
}

func newPlainField(id, name, typ string) *plainField {
	return &plainField{base: base{id: id, name: name, schema: Schema{Type: typ, System: id}}}
}
