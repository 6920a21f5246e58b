package resultset

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// collationSize is the length of a collation record on the wire.
const collationSize = 5

// Comparison flags stored in bits 20-27 of the collation info word.
const (
	CollationIgnoreCase   uint8 = 0x01
	CollationIgnoreAccent uint8 = 0x02
	CollationIgnoreKana   uint8 = 0x04
	CollationIgnoreWidth  uint8 = 0x08
	CollationBinary       uint8 = 0x10
	CollationBinary2      uint8 = 0x20
	CollationUTF8         uint8 = 0x40
)

const codePageUTF8 = 65001

// Collation identifies how the bytes of a character column map to text.
type Collation struct {
	LCID    uint32
	Flags   uint8
	Version uint8
	SortID  uint8
}

// ParseCollation reads a 5 byte collation record.
func ParseCollation(b []byte) (Collation, error) {
	if len(b) != collationSize {
		return Collation{}, errors.Errorf("collation record is %d bytes, want %d", len(b), collationSize)
	}
	info := binary.LittleEndian.Uint32(b)
	return Collation{
		LCID:    info & 0x000FFFFF,
		Flags:   uint8(info >> 20),
		Version: uint8(info >> 28),
		SortID:  b[4],
	}, nil
}

// Bytes encodes the collation as its 5 byte wire record.
func (c Collation) Bytes() []byte {
	b := make([]byte, collationSize)
	info := c.LCID&0x000FFFFF | uint32(c.Flags)<<20 | uint32(c.Version&0x0F)<<28
	binary.LittleEndian.PutUint32(b, info)
	b[4] = c.SortID
	return b
}

func (c Collation) IsZero() bool {
	return c == Collation{}
}

func (c Collation) UTF8() bool {
	return c.Flags&CollationUTF8 != 0
}

func (c Collation) CaseInsensitive() bool {
	return c.Flags&CollationIgnoreCase != 0
}

func (c Collation) String() string {
	if name, ok := collationNames[c]; ok {
		return name
	}
	return fmt.Sprintf("lcid=0x%04X flags=0x%02X sort=%d", c.LCID, c.Flags, c.SortID)
}

// CodePage resolves the code page of single-byte character data. Legacy
// SQL collations carry a sort id that decides the code page; otherwise the
// UTF-8 flag and then the locale decide.
func (c Collation) CodePage() (int, bool) {
	if c.SortID != 0 {
		cp, ok := sortIDCodePages[c.SortID]
		return cp, ok
	}
	if c.UTF8() {
		return codePageUTF8, true
	}
	cp, ok := lcidCodePages[c.LCID]
	return cp, ok
}

// encoding returns the text encoding for the collation. A nil encoding with
// ok set means the data is UTF-8.
func (c Collation) encoding() (encoding.Encoding, bool) {
	cp, ok := c.CodePage()
	if !ok {
		return nil, false
	}
	if cp == codePageUTF8 {
		return nil, true
	}
	enc, ok := codePageEncodings[cp]
	return enc, ok
}

var codePageEncodings = map[int]encoding.Encoding{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	874:  charmap.Windows874,
	932:  japanese.ShiftJIS,
	936:  simplifiedchinese.GBK,
	949:  korean.EUCKR,
	950:  traditionalchinese.Big5,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
	1253: charmap.Windows1253,
	1254: charmap.Windows1254,
	1255: charmap.Windows1255,
	1256: charmap.Windows1256,
	1257: charmap.Windows1257,
	1258: charmap.Windows1258,
}

var sortIDCodePages = map[uint8]int{
	30: 437, 31: 437, 32: 437, 33: 437, 34: 437,
	40: 850, 41: 850, 42: 850, 43: 850, 44: 850, 49: 850,
	55: 850, 56: 850, 57: 850, 58: 850, 59: 850, 60: 850, 61: 850,
	51: 1252, 52: 1252, 53: 1252, 54: 1252, 71: 1252, 72: 1252,
	73: 1252, 74: 1252, 75: 1252, 183: 1252, 184: 1252, 185: 1252, 186: 1252,
	80: 1250, 81: 1250, 82: 1250, 83: 1250, 84: 1250, 85: 1250,
	86: 1250, 87: 1250, 88: 1250, 89: 1250, 90: 1250, 91: 1250,
	92: 1250, 93: 1250, 94: 1250, 95: 1250, 96: 1250, 97: 1250, 98: 1250,
	104: 1251, 105: 1251, 106: 1251, 107: 1251, 108: 1251,
	112: 1253, 113: 1253, 114: 1253, 121: 1253, 124: 1253,
	128: 1254, 129: 1254, 130: 1254,
	136: 1255, 137: 1255, 138: 1255,
	144: 1256, 145: 1256, 146: 1256,
	152: 1257, 153: 1257, 154: 1257, 155: 1257, 156: 1257,
	157: 1257, 158: 1257, 159: 1257, 160: 1257,
}

var lcidCodePages = map[uint32]int{
	0x0401: 1256, // ar-SA
	0x0402: 1251, // bg
	0x0404: 950,  // zh-TW
	0x0405: 1250, // cs
	0x0406: 1252, // da
	0x0407: 1252, // de
	0x0408: 1253, // el
	0x0409: 1252, // en-US
	0x040B: 1252, // fi
	0x040C: 1252, // fr
	0x040D: 1255, // he
	0x040E: 1250, // hu
	0x0410: 1252, // it
	0x0411: 932,  // ja
	0x0412: 949,  // ko
	0x0413: 1252, // nl
	0x0414: 1252, // nb
	0x0415: 1250, // pl
	0x0416: 1252, // pt-BR
	0x0418: 1250, // ro
	0x0419: 1251, // ru
	0x041A: 1250, // hr
	0x041B: 1250, // sk
	0x041D: 1252, // sv
	0x041E: 874,  // th
	0x041F: 1254, // tr
	0x0422: 1251, // uk
	0x0424: 1250, // sl
	0x0425: 1257, // et
	0x0426: 1257, // lv
	0x0427: 1257, // lt
	0x042A: 1258, // vi
	0x0804: 936,  // zh-CN
	0x0809: 1252, // en-GB
	0x0816: 1252, // pt
	0x0C04: 950,  // zh-HK
	0x0C0A: 1252, // es
	0x0C1A: 1251, // sr-Cyrl
	0x1004: 936,  // zh-SG
}

const (
	caseInsensitiveAS = CollationIgnoreCase | CollationIgnoreKana | CollationIgnoreWidth
	caseSensitiveAS   = CollationIgnoreKana | CollationIgnoreWidth
)

// Named collations understood by COLLATE clauses.
var namedCollations = map[string]Collation{
	"Latin1_General_CI_AS":             {LCID: 0x0409, Flags: caseInsensitiveAS},
	"Latin1_General_CS_AS":             {LCID: 0x0409, Flags: caseSensitiveAS},
	"Latin1_General_BIN2":              {LCID: 0x0409, Flags: CollationBinary2},
	"Latin1_General_100_CI_AS_SC_UTF8": {LCID: 0x0409, Flags: caseInsensitiveAS | CollationUTF8, Version: 2},
	"SQL_Latin1_General_CP1_CI_AS":     {LCID: 0x0409, Flags: caseInsensitiveAS, SortID: 52},
	"SQL_Latin1_General_CP1_CS_AS":     {LCID: 0x0409, Flags: caseSensitiveAS, SortID: 51},
	"SQL_Latin1_General_CP437_CI_AS":   {LCID: 0x0409, Flags: caseInsensitiveAS, SortID: 32},
	"Cyrillic_General_CI_AS":           {LCID: 0x0419, Flags: caseInsensitiveAS},
	"Greek_CI_AS":                      {LCID: 0x0408, Flags: caseInsensitiveAS},
	"Turkish_CI_AS":                    {LCID: 0x041F, Flags: caseInsensitiveAS},
	"Hebrew_CI_AS":                     {LCID: 0x040D, Flags: caseInsensitiveAS},
	"Arabic_CI_AS":                     {LCID: 0x0401, Flags: caseInsensitiveAS},
	"Polish_CI_AS":                     {LCID: 0x0415, Flags: caseInsensitiveAS},
	"Japanese_CI_AS":                   {LCID: 0x0411, Flags: caseInsensitiveAS},
	"Korean_Wansung_CI_AS":             {LCID: 0x0412, Flags: caseInsensitiveAS},
	"Chinese_PRC_CI_AS":                {LCID: 0x0804, Flags: caseInsensitiveAS},
	"Chinese_Taiwan_Stroke_CI_AS":      {LCID: 0x0404, Flags: caseInsensitiveAS},
	"Thai_CI_AS":                       {LCID: 0x041E, Flags: caseInsensitiveAS},
	"Vietnamese_CI_AS":                 {LCID: 0x042A, Flags: caseInsensitiveAS},
}

var collationNames = func() map[Collation]string {
	names := make(map[Collation]string, len(namedCollations))
	for name, c := range namedCollations {
		names[c] = name
	}
	return names
}()

// DefaultCollation is the server collation of the in-memory backend.
var DefaultCollation = namedCollations["Latin1_General_CI_AS"]

// LookupCollation finds a collation by its SQL Server name, ignoring case.
func LookupCollation(name string) (Collation, bool) {
	if c, ok := namedCollations[name]; ok {
		return c, true
	}
	for n, c := range namedCollations {
		if strings.EqualFold(n, name) {
			return c, true
		}
	}
	return Collation{}, false
}
