package catalog

// FieldType is the value type of a record field.
type FieldType int

// Field types.
const (
	String FieldType = iota
	Number
	Time
	StringList
	Bool
	// Ref holds the id of a record of another kind. Once populated it holds
	// the referenced Record instead.
	Ref
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Number:
		return "number"
	case Time:
		return "time"
	case StringList:
		return "string_list"
	case Bool:
		return "bool"
	case Ref:
		return "ref"
	default:
		return "unknown"
	}
}

// Field describes one field of a kind.
type Field struct {
	Name string
	Type FieldType
	To   Kind // Ref target
}

// Schema is the ordered field list of a kind, excluding the id.
type Schema []Field

// Lookup returns the field definition by name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

var schemas = map[Kind]Schema{
	Account: {
		{Name: "handle", Type: String},
		{Name: "fullName", Type: String},
		{Name: "avatar", Type: String},
		{Name: "bio", Type: String},
	},
	Track: {
		{Name: "title", Type: String},
		{Name: "performer", Type: Ref, To: Performer},
		{Name: "album", Type: Ref, To: Album},
		{Name: "duration", Type: Number},
		{Name: "url", Type: String},
		{Name: "genre", Type: StringList},
		{Name: "releaseDate", Type: Time},
		{Name: "plays", Type: Number},
	},
	Performer: {
		{Name: "name", Type: String},
		{Name: "bio", Type: String},
		{Name: "genres", Type: StringList},
		{Name: "image", Type: String},
	},
	Collection: {
		{Name: "name", Type: String},
		{Name: "owner", Type: Ref, To: Account},
		{Name: "tracks", Type: StringList},
		{Name: "isPublic", Type: Bool},
		{Name: "description", Type: String},
		{Name: "coverArt", Type: String},
	},
	Album: {
		{Name: "title", Type: String},
		{Name: "performer", Type: Ref, To: Performer},
		{Name: "releaseDate", Type: Time},
		{Name: "genre", Type: StringList},
		{Name: "coverArt", Type: String},
	},
}

// SchemaOf returns the schema of kind k, or nil for an unknown kind.
func SchemaOf(k Kind) Schema { return schemas[k] }
