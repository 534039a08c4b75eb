package jvm

// Method is the metadata of one declared method: where it lives and its
// shape. It carries no code; bodies come from the bytecode source.
type Method struct {
	ClassSignature string
	Name           string
	Descriptor     string
	Static         bool
}

// Key returns the name+descriptor pair identifying the method within its
// class.
func (m Method) Key() string { return m.Name + m.Descriptor }

// DisplayName renders the method as "com.acme.Point.move" for messages.
func (m Method) DisplayName() string {
	return BinaryName(m.ClassSignature) + "." + m.Name
}
