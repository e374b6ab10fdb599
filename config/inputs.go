package config

// InputsConfig names the snapshot sources. Command line flags take
// precedence.
type InputsConfig struct {
	Trips    string `json:"trips"`
	Bays     string `json:"bays"`
	Clusters string `json:"clusters"`
	// GTFS is a static feed zip. When set, trips are derived from the feed
	// instead of the trips file.
	GTFS string `json:"gtfs"`
	// BayStops maps GTFS stop IDs to bay IDs. Stops absent from the map are
	// ignored; an empty map treats every bay ID as a stop ID.
	BayStops map[string]string `json:"bay_stops"`
	// Services limits the feed to these service IDs. Empty keeps all.
	Services []string `json:"services"`
}
