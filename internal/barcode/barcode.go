// Package barcode derives display barcodes for batches from the garment
// lookup tables. A barcode is a label, never an identity: every cost layer
// of one type/color/size carries the same table barcode.
package barcode

import (
	"strings"
	"unicode"
)

var colorCodes = map[string]map[string]string{
	"Plain": {
		"Navy Blue": "P01", "Mehroon": "P02", "Coffee": "P03", "Bottle Green": "P04",
		"Black": "P05", "Mixture Grey": "P06", "Sky Blue": "P07", "White": "P08", "Red": "P09",
	},
	"Dora": {
		"Navy Blue+White": "D01", "Navy Blue+Sky": "D02", "Red+White": "D03", "Red+Yellow": "D04",
		"Mehroon+White": "D05", "Mehroon+Yellow": "D06", "Bottle Green+White": "D07", "Bottle Green+Yellow": "D08",
		"Mixture Grey+White": "D09", "Black+White": "D10", "Sky Blue+White": "D11", "Coffee+White": "D12",
		"Coffee+Camel": "D13",
	},
	"Zipper": {
		"Mehroon": "Z01", "Navy Blue": "Z02", "Red": "Z03", "Bottle Green": "Z04",
		"Mixture Grey": "Z05", "Black": "Z06", "Sky Blue": "Z07", "Coffee": "Z08",
	},
}

var sizeCodes = map[string]string{
	"24": "S01", "26": "S02", "26-32 Set": "S03", "32": "S04",
	"34-38 Set": "S05", "38": "S06", "40-42 Set": "S07", "Free Size": "S08",
}

type Variant struct {
	Type  string
	Color string
	Size  string
}

// Lookup returns the table barcode for a variant, e.g. Plain/Navy Blue/32
// => "P01S04".
func Lookup(typ, color, size string) (string, bool) {
	colors, ok := colorCodes[typ]
	if !ok {
		return "", false
	}
	colorCode, ok := colors[color]
	if !ok {
		return "", false
	}
	sizeCode, ok := sizeCodes[size]
	if !ok {
		return "", false
	}
	return colorCode + sizeCode, true
}

// Encode returns the table barcode, or for variants missing from the tables
// the type initial followed by the given per-batch suffix.
func Encode(typ, color, size, fallbackSuffix string) string {
	if code, ok := Lookup(typ, color, size); ok {
		return code
	}
	initial := "X"
	for _, r := range strings.TrimSpace(typ) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			initial = strings.ToUpper(string(r))
			break
		}
	}
	return initial + strings.ToUpper(fallbackSuffix)
}

// Decode maps a scanned code back to its variant. Only table barcodes
// decode; fallback barcodes are matched by the caller against stored batches.
func Decode(code string) (Variant, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 6 {
		return Variant{}, false
	}
	colorCode, sizeCode := code[:3], code[3:6]

	var v Variant
	for typ, colors := range colorCodes {
		for color, c := range colors {
			if c == colorCode {
				v.Type, v.Color = typ, color
				break
			}
		}
		if v.Type != "" {
			break
		}
	}
	for size, c := range sizeCodes {
		if c == sizeCode {
			v.Size = size
			break
		}
	}
	if v.Type == "" || v.Size == "" {
		return Variant{}, false
	}
	return v, true
}
