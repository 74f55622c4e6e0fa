package target

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultBasePort is the first dev server port; entry i listens on DefaultBasePort+i.
const DefaultBasePort = 3000

// DefineSuffix terminates every injected resolution-address constant name.
const DefineSuffix = "_WEBPACK_ENTRY"

var upper = cases.Upper(language.Und)

// PortFor returns the dev server port for the entry point at index.
func PortFor(basePort, index int) int {
	if basePort <= 0 {
		basePort = DefaultBasePort
	}
	return basePort + index
}

// Ports returns the ordered port sequence for n entry points.
func Ports(basePort, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = PortFor(basePort, i)
	}
	return out
}

// DefineName derives the constant name the main bundle reads an entry's address from.
func DefineName(entryName string) string {
	return strings.ReplaceAll(upper.String(entryName), " ", "_") + DefineSuffix
}

// ResolutionAddress is how the main bundle locates a renderer's content at runtime.
type ResolutionAddress struct {
	Mode      Mode
	EntryName string
	// URL is the loopback address in Development; empty in Production where the
	// location is only known at runtime.
	URL string
	// Expr is the JavaScript expression injected into the main bundle.
	Expr string
}

// AddressFor computes the resolution address of entry at index.
func AddressFor(mode Mode, entry EntryPoint, index, basePort int) ResolutionAddress {
	addr := ResolutionAddress{Mode: mode, EntryName: entry.Name}
	if mode.IsProduction() {
		addr.Expr = fmt.Sprintf("`file://${require('path').resolve(__dirname, '..', 'renderer', %s, 'index.html')}`",
			jsString(entry.Name))
		return addr
	}
	addr.URL = fmt.Sprintf("http://localhost:%d", PortFor(basePort, index))
	addr.Expr = jsString(addr.URL)
	return addr
}

// jsString quotes s as a JSON string, which is also a valid JavaScript literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
