package target

import "git.home.luguber.info/inful/forgepack/internal/foundation/normalization"

// Mode selects between the live-reloading development pipeline and the one-shot
// production pipeline. It is passed explicitly to every derivation call.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

var modeNormalizer = normalization.NewNormalizer(map[string]Mode{
	"dev":         Development,
	"development": Development,
	"prod":        Production,
	"production":  Production,
}, Development)

// ParseMode converts user input into a Mode.
func ParseMode(raw string) (Mode, error) {
	return modeNormalizer.NormalizeWithError(raw)
}

func (m Mode) String() string { return string(m) }

// IsProduction reports whether m is Production.
func (m Mode) IsProduction() bool { return m == Production }
