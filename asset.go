package kasa

import (
	"fmt"
	"slices"
	"strings"
)

// AssetID identifies one of the tracked assets. The set is closed: see Assets.
type AssetID string

// Tracked assets.
const (
	XAU AssetID = "XAU_G"  // gold, per gram
	XAG AssetID = "XAG_G"  // silver, per gram
	XCU AssetID = "XCU_G"  // copper, per gram
	USD AssetID = "USDTRY" // one US dollar
	EUR AssetID = "EURTRY" // one euro
)

// Currency is the valuation currency of every price and amount.
const Currency = "TRY"

// Class groups assets that are served by the same kind of quote source.
type Class int

const (
	ClassFX Class = iota
	ClassPrecious
	ClassBase
)

func (c Class) String() string {
	switch c {
	case ClassFX:
		return "fx"
	case ClassPrecious:
		return "metals"
	case ClassBase:
		return "base-metal"
	default:
		return "unknown"
	}
}

// AssetInfo is the display metadata of an asset.
type AssetInfo struct {
	ID    AssetID
	Name  string
	Unit  string
	Class Class
}

// declared order matters: it is the order of rows in every report.
var assets = []AssetInfo{
	{ID: XAU, Name: "Gram Gold", Unit: "g", Class: ClassPrecious},
	{ID: XAG, Name: "Gram Silver", Unit: "g", Class: ClassPrecious},
	{ID: XCU, Name: "Copper", Unit: "g", Class: ClassBase},
	{ID: USD, Name: "USD/TRY", Unit: "USD", Class: ClassFX},
	{ID: EUR, Name: "EUR/TRY", Unit: "EUR", Class: ClassFX},
}

// Assets returns all tracked asset ids in declaration order.
func Assets() []AssetID {
	ids := make([]AssetID, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

// Info returns the metadata of id, and false if id is not a tracked asset.
func (id AssetID) Info() (AssetInfo, bool) {
	for _, a := range assets {
		if a.ID == id {
			return a, true
		}
	}
	return AssetInfo{}, false
}

// Valid reports whether id is one of the tracked assets.
func (id AssetID) Valid() bool {
	_, ok := id.Info()
	return ok
}

// Name returns the display name, or the raw id for unknown assets.
func (id AssetID) Name() string {
	if a, ok := id.Info(); ok {
		return a.Name
	}
	return string(id)
}

// Class returns the asset class. Unknown ids panic, validate them first.
func (id AssetID) Class() Class {
	a, ok := id.Info()
	if !ok {
		panic("unknown asset " + string(id))
	}
	return a.Class
}

func (id AssetID) String() string { return string(id) }

// UnknownAssetError is returned when an id outside the tracked set is used.
type UnknownAssetError struct {
	ID string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q (want one of %s)", e.ID, strings.Join(assetNames(), ", "))
}

func assetNames() []string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = string(a.ID)
	}
	return names
}

// ParseAsset parses an asset id. It is case insensitive.
func ParseAsset(s string) (AssetID, error) {
	id := AssetID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", &UnknownAssetError{ID: s}
	}
	return id, nil
}

// partition splits ids by class, dropping duplicates and keeping the first
// occurrence order.
func partition(ids []AssetID) map[Class][]AssetID {
	out := make(map[Class][]AssetID)
	for _, id := range ids {
		c := id.Class()
		if slices.Contains(out[c], id) {
			continue
		}
		out[c] = append(out[c], id)
	}
	return out
}
