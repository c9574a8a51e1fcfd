package schema

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// encodingAliases maps codec names used by schema authors that are not
// WHATWG labels onto labels htmlindex knows.
var encodingAliases = map[string]string{
	"utf8":   "utf-8",
	"u8":     "utf-8",
	"cp932":  "windows-31j",
	"ms932":  "windows-31j",
	"932":    "windows-31j",
	"cp936":  "gbk",
	"cp949":  "euc-kr",
	"cp950":  "big5",
	"utf16":  "utf-16le",
	"latin1": "iso-8859-1",
}

// lookupEncoding resolves an encoding label. It returns a nil Encoding for
// UTF-8 so callers can take the direct path.
func lookupEncoding(label string) (encoding.Encoding, bool) {
	name := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := encodingAliases[name]; ok {
		name = alias
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, false
	}
	if canonical, err := htmlindex.Name(enc); err == nil && canonical == "utf-8" {
		return nil, true
	}
	return enc, true
}
