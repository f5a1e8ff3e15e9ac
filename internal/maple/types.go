package maple

import "fmt"

// Track is one playable BGM, identified by its map id within a
// region+version namespace. The JSON field names match the on-disk
// user data layout and must not change.
type Track struct {
	MapID      int64  `json:"mapId"`
	MapName    string `json:"mapName"`
	StreetName string `json:"streetName"`
	Region     string `json:"region"`
	Version    string `json:"version"`
}

// Label renders the track the way the bot displays it everywhere:
// "MapName (StreetName)".
func (t Track) Label() string {
	return fmt.Sprintf("%s (%s)", t.MapName, t.StreetName)
}
