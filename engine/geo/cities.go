package geo

// City is a known municipality with a representative postal code.
type City struct {
	Slug    string
	Name    string
	Country string
	Region  string
	Postal  string
	Lat     float64
	Lon     float64
}

// knownCities is matched in order, so longer names that contain shorter
// ones must come first.
var knownCities = []City{
	{"vancouver", "Vancouver", "CA", "bc", "V5K0A1", 49.2804, -123.0389},
	{"toronto", "Toronto", "CA", "on", "M5H2N2", 43.6511, -79.3839},
	{"montreal", "Montreal", "CA", "qc", "H1A0A1", 45.6735, -73.4927},
	{"calgary", "Calgary", "CA", "ab", "T2P5E1", 51.0486, -114.0708},
	{"ottawa", "Ottawa", "CA", "on", "K1A0A6", 45.4236, -75.7009},
	{"edmonton", "Edmonton", "CA", "ab", "T5J2R7", 53.5444, -113.4909},
	{"winnipeg", "Winnipeg", "CA", "mb", "R3C0A5", 49.8951, -97.1384},
	{"mississauga", "Mississauga", "CA", "on", "L5B1M2", 43.5890, -79.6441},
	{"victoria", "Victoria", "CA", "bc", "V8W1P8", 48.4284, -123.3656},
	{"hamilton", "Hamilton", "CA", "on", "L8P4R5", 43.2557, -79.8711},
	{"quebec", "Quebec City", "CA", "qc", "G1R4P5", 46.8139, -71.2080},
	{"halifax", "Halifax", "CA", "ns", "B3J3R7", 44.6488, -63.5752},
	{"surrey", "Surrey", "CA", "bc", "V3T0A3", 49.1913, -122.8490},
	{"richmond", "Richmond", "CA", "bc", "V6X0A4", 49.1666, -123.1336},
	{"markham", "Markham", "CA", "on", "L3R0G6", 43.8561, -79.3370},
	{"saskatoon", "Saskatoon", "CA", "sk", "S7K0C1", 52.1332, -106.6700},
	{"charlottetown", "Charlottetown", "CA", "pe", "C1A0A1", 46.2382, -63.1311},
	{"fredericton", "Fredericton", "CA", "nb", "E3B0R1", 45.9636, -66.6431},
	{"st-johns", "St. John's", "CA", "nl", "A1C0A6", 47.5615, -52.7126},
	{"london", "London", "CA", "on", "N6A3K7", 42.9849, -81.2453},

	{"new-york", "New York", "US", "ny", "10001", 40.7506, -73.9972},
	{"los-angeles", "Los Angeles", "US", "ca", "90012", 34.0614, -118.2385},
	{"chicago", "Chicago", "US", "il", "60601", 41.8858, -87.6181},
	{"seattle", "Seattle", "US", "wa", "98101", 47.6101, -122.3344},
	{"detroit", "Detroit", "US", "mi", "48226", 42.3314, -83.0458},
	{"buffalo", "Buffalo", "US", "ny", "14202", 42.8864, -78.8784},
	{"boston", "Boston", "US", "ma", "02108", 42.3576, -71.0636},
	{"san-francisco", "San Francisco", "US", "ca", "94102", 37.7793, -122.4193},
	{"miami", "Miami", "US", "fl", "33130", 25.7676, -80.2043},
	{"dallas", "Dallas", "US", "tx", "75201", 32.7876, -96.7994},
	{"houston", "Houston", "US", "tx", "77002", 29.7589, -95.3677},
	{"denver", "Denver", "US", "co", "80202", 39.7525, -104.9995},
	{"bellingham", "Bellingham", "US", "wa", "98225", 48.7519, -122.4787},
}

// Region is a province or state with the aliases used to recognize it in
// free text and the city used when only the region is known.
type Region struct {
	Slug        string
	Name        string
	Country     string
	Aliases     []string
	DefaultCity string
}

var regions = []Region{
	{"bc", "British Columbia", "CA", []string{"british columbia", "bc"}, "vancouver"},
	{"ab", "Alberta", "CA", []string{"alberta"}, "calgary"},
	{"sk", "Saskatchewan", "CA", []string{"saskatchewan"}, "saskatoon"},
	{"mb", "Manitoba", "CA", []string{"manitoba"}, "winnipeg"},
	{"on", "Ontario", "CA", []string{"ontario"}, "toronto"},
	{"qc", "Quebec", "CA", []string{"quebec", "québec"}, "montreal"},
	{"nb", "New Brunswick", "CA", []string{"new brunswick"}, "fredericton"},
	{"ns", "Nova Scotia", "CA", []string{"nova scotia"}, "halifax"},
	{"pe", "Prince Edward Island", "CA", []string{"prince edward island", "pei"}, "charlottetown"},
	{"nl", "Newfoundland and Labrador", "CA", []string{"newfoundland"}, "st-johns"},

	{"wa", "Washington", "US", []string{"washington state", "wa"}, "seattle"},
	{"ny", "New York", "US", []string{"new york state", "ny"}, "new-york"},
	{"ca", "California", "US", []string{"california"}, "los-angeles"},
	{"il", "Illinois", "US", []string{"illinois"}, "chicago"},
	{"mi", "Michigan", "US", []string{"michigan"}, "detroit"},
	{"ma", "Massachusetts", "US", []string{"massachusetts"}, "boston"},
	{"fl", "Florida", "US", []string{"florida", "fl"}, "miami"},
	{"tx", "Texas", "US", []string{"texas", "tx"}, "dallas"},
	{"co", "Colorado", "US", []string{"colorado"}, "denver"},
}

// fsaRegion maps the first letter of a Canadian postal code to its province.
var fsaRegion = map[byte]string{
	'A': "nl", 'B': "ns", 'C': "pe", 'E': "nb",
	'G': "qc", 'H': "qc", 'J': "qc",
	'K': "on", 'L': "on", 'M': "on", 'N': "on", 'P': "on",
	'R': "mb", 'S': "sk", 'T': "ab", 'V': "bc",
	'X': "nt", 'Y': "yt",
}

// RegionBySlug returns the region with the given slug in country.
func RegionBySlug(country, slug string) (Region, bool) {
	for _, r := range regions {
		if r.Country == country && r.Slug == slug {
			return r, true
		}
	}
	return Region{}, false
}

// CityBySlug returns the known city with the given slug.
func CityBySlug(slug string) (City, bool) {
	for _, c := range knownCities {
		if c.Slug == slug {
			return c, true
		}
	}
	return City{}, false
}
