package models

import "strings"

type RegionSource string

const (
	RegionSourceDevice RegionSource = "device-detected"
	RegionSourceUser   RegionSource = "user-selected"
	RegionSourceNone   RegionSource = "none"
)

// IndianStates is the default list offered for manual region selection.
var IndianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya", "Mizoram",
	"Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim", "Tamil Nadu",
	"Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
}

const RegionUnresolved = "unresolved"

// IsUnknownRegion reports whether a region lookup answer is the "unknown" sentinel.
func IsUnknownRegion(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, "unknown") || strings.EqualFold(name, RegionUnresolved)
}

type WeatherReading struct {
	Rainfall    float64 `json:"rainfall"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

type Nutrients struct {
	N  float64 `json:"N"`
	P  float64 `json:"P"`
	K  float64 `json:"K"`
	PH float64 `json:"pH"`
}

// DefaultNutrients is used when auto mode has nothing better.
var DefaultNutrients = Nutrients{N: 100, P: 50, K: 50, PH: 6.5}

// ResolvedContext is the location-derived context merged from independent lookups.
type ResolvedContext struct {
	Region       string          `json:"region"`
	RegionSource RegionSource    `json:"region_source"`
	Coordinates  *Coordinates    `json:"coordinates,omitempty"`
	Weather      *WeatherReading `json:"weather,omitempty"`
	Nutrients    *Nutrients      `json:"nutrients,omitempty"`
}

func NewResolvedContext() ResolvedContext {
	return ResolvedContext{Region: RegionUnresolved, RegionSource: RegionSourceNone}
}

// HasRegion reports whether the region came from the device or the user.
func (c ResolvedContext) HasRegion() bool {
	return c.RegionSource == RegionSourceDevice || c.RegionSource == RegionSourceUser
}

// Clone returns a deep copy safe to hand to listeners.
func (c ResolvedContext) Clone() ResolvedContext {
	out := c
	if c.Coordinates != nil {
		coords := *c.Coordinates
		out.Coordinates = &coords
	}
	if c.Weather != nil {
		w := *c.Weather
		out.Weather = &w
	}
	if c.Nutrients != nil {
		n := *c.Nutrients
		out.Nutrients = &n
	}
	return out
}
