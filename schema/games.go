package schema

import "strings"

var gameAliases = map[string]string{
	"kuro":      "ed9_Daybreak1",
	"kuro1":     "ed9_Daybreak1",
	"daybreak":  "ed9_Daybreak1",
	"daybreak1": "ed9_Daybreak1",
	"ed9_1":     "ed9_Daybreak1",
	"ysx":       "ys_X",
	"ys_x":      "ys_X",
}

// ResolveGame maps a short game name to its schema namespace. Unknown
// names are returned unchanged.
func ResolveGame(name string) string {
	if ns, ok := gameAliases[strings.ToLower(name)]; ok {
		return ns
	}
	return name
}
