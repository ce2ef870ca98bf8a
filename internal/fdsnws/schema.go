package fdsnws

// Aliases maps the short parameter names of the FDSN web service standard onto
// their canonical long form.
var Aliases = map[string]string{
	"net":     "network",
	"sta":     "station",
	"loc":     "location",
	"cha":     "channel",
	"start":   "starttime",
	"end":     "endtime",
	"minlat":  "minlatitude",
	"maxlat":  "maxlatitude",
	"minlon":  "minlongitude",
	"maxlon":  "maxlongitude",
	"lat":     "latitude",
	"lon":     "longitude",
	"minmag":  "minmagnitude",
	"maxmag":  "maxmagnitude",
	"magtype": "magnitudetype",
}

// IgnoredParameters are accepted by some servers but meaningless for this
// client. They are dropped with a warning.
var IgnoredParameters = []string{"nodata"}

// defaultTypes holds the type of every standard FDSN parameter, including
// event parameters that neither supported service accepts.
var defaultTypes = map[string]ValueType{
	"starttime":            TypeTimestamp,
	"endtime":              TypeTimestamp,
	"network":              TypeString,
	"station":              TypeString,
	"location":             TypeString,
	"channel":              TypeString,
	"quality":              TypeString,
	"minimumlength":        TypeFloat,
	"longestonly":          TypeBoolean,
	"startbefore":          TypeTimestamp,
	"startafter":           TypeTimestamp,
	"endbefore":            TypeTimestamp,
	"endafter":             TypeTimestamp,
	"maxlongitude":         TypeFloat,
	"minlongitude":         TypeFloat,
	"longitude":            TypeFloat,
	"maxlatitude":          TypeFloat,
	"minlatitude":          TypeFloat,
	"latitude":             TypeFloat,
	"maxdepth":             TypeFloat,
	"mindepth":             TypeFloat,
	"maxmagnitude":         TypeFloat,
	"minmagnitude":         TypeFloat,
	"magnitudetype":        TypeString,
	"maxradius":            TypeFloat,
	"minradius":            TypeFloat,
	"level":                TypeString,
	"includerestricted":    TypeBoolean,
	"includeavailability":  TypeBoolean,
	"includeallorigins":    TypeBoolean,
	"includeallmagnitudes": TypeBoolean,
	"includearrivals":      TypeBoolean,
	"matchtimeseries":      TypeBoolean,
	"eventid":              TypeString,
	"eventtype":            TypeString,
	"limit":                TypeInteger,
	"offset":               TypeInteger,
	"orderby":              TypeString,
	"catalog":              TypeString,
	"contributor":          TypeString,
	"updatedafter":         TypeTimestamp,
	"format":               TypeString,
}

var defaultValues = map[string]any{
	"quality":              "B",
	"minimumlength":        0.0,
	"longestonly":          false,
	"maxlongitude":         180.0,
	"minlongitude":         -180.0,
	"longitude":            0.0,
	"maxlatitude":          90.0,
	"minlatitude":          -90.0,
	"latitude":             0.0,
	"maxradius":            180.0,
	"minradius":            0.0,
	"level":                "station",
	"includerestricted":    true,
	"includeavailability":  false,
	"includeallorigins":    false,
	"includeallmagnitudes": false,
	"includearrivals":      false,
	"matchtimeseries":      false,
	"offset":               1,
	"orderby":              "time",
}

var defaultParameters = map[string][]string{
	ServiceDataselect: {"starttime", "endtime", "network", "station", "location", "channel"},
	ServiceStation: {
		"starttime", "endtime", "network", "station", "location", "channel",
		"minlatitude", "maxlatitude", "minlongitude", "maxlongitude", "level",
	},
}

var optionalParameters = map[string][]string{
	ServiceDataselect: {"quality", "minimumlength", "longestonly", "format"},
	ServiceStation: {
		"startbefore", "startafter", "endbefore", "endafter", "latitude",
		"longitude", "minradius", "maxradius", "includerestricted",
		"includeavailability", "updatedafter", "matchtimeseries", "format",
	},
}

var requiredParameters = map[string][]string{
	ServiceDataselect: {"starttime", "endtime"},
}

var formatDefaults = map[string]string{
	ServiceDataselect: "miniseed",
	ServiceStation:    "xml",
}

// Schema is the immutable table of parameters accepted by each service.
type Schema struct {
	services map[string][]ParameterSpec
	index    map[string]map[string]int
}

// DefaultSchema builds the schema of the supported FDSN services.
func DefaultSchema() *Schema {
	s := &Schema{
		services: make(map[string][]ParameterSpec, len(Services)),
		index:    make(map[string]map[string]int, len(Services)),
	}
	for _, service := range Services {
		required := make(map[string]bool)
		for _, name := range requiredParameters[service] {
			required[name] = true
		}

		names := append(append([]string{}, defaultParameters[service]...), optionalParameters[service]...)
		specs := make([]ParameterSpec, 0, len(names))
		idx := make(map[string]int, len(names))
		for _, name := range names {
			spec := ParameterSpec{
				Name:     name,
				Type:     defaultTypes[name],
				Required: required[name],
				Default:  defaultValues[name],
			}
			if name == "format" {
				spec.Default = formatDefaults[service]
			}
			idx[name] = len(specs)
			specs = append(specs, spec)
		}
		s.services[service] = specs
		s.index[service] = idx
	}
	return s
}

// Parameters returns the ordered parameter specs of a service.
func (s *Schema) Parameters(service string) []ParameterSpec {
	return append([]ParameterSpec(nil), s.services[service]...)
}

// Lookup returns the definition of a parameter for a service.
func (s *Schema) Lookup(service, name string) (ParameterSpec, bool) {
	i, ok := s.index[service][name]
	if !ok {
		return ParameterSpec{}, false
	}
	return s.services[service][i], true
}

// Required returns the names of the required parameters of a service.
func (s *Schema) Required(service string) []string {
	var names []string
	for _, spec := range s.services[service] {
		if spec.Required {
			names = append(names, spec.Name)
		}
	}
	return names
}

// IsStandard reports whether name is a standard FDSN parameter that the
// given service does not accept.
func (s *Schema) IsStandard(service, name string) bool {
	if _, ok := s.Lookup(service, name); ok {
		return false
	}
	_, ok := defaultTypes[name]
	return ok
}

// CanonicalName resolves an alias to its long parameter name.
func CanonicalName(name string) string {
	if canonical, ok := Aliases[name]; ok {
		return canonical
	}
	return name
}

func isIgnored(name string) bool {
	for _, ignored := range IgnoredParameters {
		if name == ignored {
			return true
		}
	}
	return false
}
