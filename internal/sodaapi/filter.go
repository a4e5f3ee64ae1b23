package sodaapi

// Filter is a QBE (query-by-example) object sent to ?action=query. Keys are
// document field paths, values are comparison clauses. Conditions on
// distinct fields are implicitly conjoined by the service.
type Filter map[string]any

// NewFilter returns an empty filter.
func NewFilter() Filter {
	return make(Filter)
}

// Eq constrains a field path to an exact value.
func (f Filter) Eq(field string, value any) Filter {
	f[field] = map[string]any{"$eq": value}
	return f
}

// Between constrains a field path to an inclusive [lo, hi] range.
func (f Filter) Between(field string, lo, hi any) Filter {
	f[field] = map[string]any{"$between": []any{lo, hi}}
	return f
}

// Field paths of the segment document contract. The pipeline stores each
// segment as a GeoJSON feature whose point coordinates are [x, y, z].
const (
	FieldX    = "geometry.coordinates[0]"
	FieldY    = "geometry.coordinates[1]"
	FieldZ    = "geometry.coordinates[2]"
	FieldType = "type"
)
