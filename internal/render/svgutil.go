package render

import "bytes"

// tintSVG fills the colour placeholders of a piece glyph and normalises the
// style spellings oksvg rejects.
func tintSVG(svg []byte, fill, stroke, accent string) []byte {
	out := bytes.ReplaceAll(svg, []byte("#FILLCOLOR"), []byte(fill))
	out = bytes.ReplaceAll(out, []byte("#STROKECOLOR"), []byte(stroke))
	out = bytes.ReplaceAll(out, []byte("#ACCENTCOLOR"), []byte(accent))
	out = bytes.ReplaceAll(out, []byte("fill: #"), []byte("fill:#"))
	out = bytes.ReplaceAll(out, []byte("stroke: #"), []byte("stroke:#"))
	return out
}
