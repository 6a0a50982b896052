package device

// DefaultCircuits returns the initial roster of a simulated residential site.
// The enabled circuits add up to 10 kW of rated capacity.
func DefaultCircuits() []Circuit {
	return []Circuit{
		{ID: "hvac1", Name: "HVAC", Type: "climate", RatedKW: 3.5, Critical: true, Enabled: true, Class: ClassCritical},
		{ID: "heater1", Name: "Water Heater", Type: "heating", RatedKW: 1.5, Enabled: true, Class: ClassSheddable},
		{ID: "ev1", Name: "EV Charger", Type: "ev", RatedKW: 7.2, Enabled: false, Class: ClassSheddable},
		{ID: "lights1", Name: "Lighting", Type: "lighting", RatedKW: 0.4, Enabled: true, Class: ClassFlexible},
		{ID: "fridge1", Name: "Refrigerator", Type: "refrigeration", RatedKW: 0.2, Critical: true, Enabled: true, Class: ClassCritical},
		{ID: "misc1", Name: "House Load", Type: "misc", RatedKW: 1.0, Enabled: true, Class: ClassGeneral},
		{ID: "plug1", Name: "Plug Loads", Type: "misc", RatedKW: 3.4, Enabled: true, Class: ClassGeneral},
	}
}
