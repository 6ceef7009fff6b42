package trackmeta

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var invisibles = strings.NewReplacer("\x00", "", "\uFFFD", "")

type decoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// decoders are tried in order; the first one that yields non-blank text wins.
var decoders = []decoder{
	{name: "utf-8", decode: decodeUTF8},
	{name: "iso-8859-1", decode: decodeLatin1},
	{name: "windows-1252", decode: decodeCharmap(charmap.Windows1252)},
}

// Decode turns a raw metadata block into text, stripping NUL padding and
// replacement characters. It reports the encoding that was used, or
// "utf-8-lossy" when nothing decoded cleanly.
func Decode(raw []byte) (string, string, error) {
	for _, d := range decoders {
		s, ok := d.decode(raw)
		if !ok {
			continue
		}
		s = invisibles.Replace(s)
		if strings.TrimSpace(s) != "" {
			return s, d.name, nil
		}
	}

	s := invisibles.Replace(strings.ToValidUTF8(string(raw), "\uFFFD"))
	if strings.TrimSpace(s) == "" {
		return "", "", ErrDecode
	}
	return s, "utf-8-lossy", nil
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// decodeLatin1 refuses input that maps onto C1 control codes; those bytes are
// printable punctuation in Windows-1252, which is tried next.
func decodeLatin1(raw []byte) (string, bool) {
	for _, b := range raw {
		if b >= 0x80 && b <= 0x9f {
			return "", false
		}
	}
	return decodeCharmap(charmap.ISO8859_1)(raw)
}

func decodeCharmap(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(raw []byte) (string, bool) {
		out, err := cm.NewDecoder().Bytes(raw)
		if err != nil {
			return "", false
		}
		return string(out), true
	}
}
