package fbreak

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Text reads a fixed run of bytes and decodes it as a string in the named
// encoding. Supported names include UTF-8, ASCII, UTF-16LE, UTF-16BE,
// ISO-8859-1 and Windows-1252; unknown names are a construction error.
func Text(byteLength any, encodingName string) Parser {
	dec := decoderFor(encodingName)
	p := Translate(Bytes(byteLength), func(v any) (any, error) {
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("text field read %T instead of bytes", v)
		}
		if dec == nil {
			return string(raw), nil
		}
		out, err := dec.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding %s text: %w", ErrParse, encodingName, err)
		}
		return string(out), nil
	})
	p.backup = "Text"
	return p
}

// decoderFor maps an encoding name to its x/text encoding. A nil return
// means the bytes are already valid as-is (UTF-8 and ASCII).
func decoderFor(name string) encoding.Encoding {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "UTF-8", "UTF8", "ASCII":
		return nil
	case "UTF-16LE", "UTF16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "UTF-16BE", "UTF16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	case "ISO-8859-1", "LATIN-1", "LATIN1":
		return charmap.ISO8859_1
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252
	default:
		constructionFail("unsupported text encoding %q", name)
		return nil
	}
}
