package types

type ConversionResult struct {
	InputFile          string
	OutputFile         string
	FieldsWritten      []string
	MissingRecommended []string
	BytesWritten       int64
}

type FileData struct {
	Headers   []string
	Rows      [][]string
	HeaderRow int
}

// Classification records how a spreadsheet's header row lines up with the
// field schema. Column maps a canonical field name to its column index.
type Classification struct {
	Mandatory          []string
	Recommended        []string
	Optional           []string
	MissingMandatory   []string
	MissingRecommended []string
	Unrecognized       []string
	Column             map[string]int
}

// Present returns the matched fields in output order: mandatory, then
// recommended, then optional.
func (c *Classification) Present() []string {
	out := make([]string, 0, len(c.Mandatory)+len(c.Recommended)+len(c.Optional))
	out = append(out, c.Mandatory...)
	out = append(out, c.Recommended...)
	out = append(out, c.Optional...)
	return out
}
