package vehiclenlp

import (
	"regexp"
	"sort"
	"strings"
)

type makeEntry struct {
	name    string
	aliases []string
	models  []string
}

var catalog = []makeEntry{
	{"Acura", nil, []string{"TLX", "MDX", "RDX", "Integra", "ILX", "NSX"}},
	{"Alfa Romeo", nil, []string{"Giulia", "Stelvio", "Tonale"}},
	{"Audi", nil, []string{"A3", "A4", "A5", "A6", "A8", "Q3", "Q5", "Q7", "Q8", "e-tron", "RS5", "RS7", "S4", "TT"}},
	{"BMW", nil, []string{"2 Series", "3 Series", "4 Series", "5 Series", "7 Series", "X1", "X3", "X5", "X6", "X7", "M3", "M5", "i4", "iX"}},
	{"Buick", nil, []string{"Enclave", "Encore", "Envision", "Regal", "LaCrosse"}},
	{"Cadillac", nil, []string{"Escalade", "CT4", "CT5", "XT4", "XT5", "XT6", "Lyriq"}},
	{"Chevrolet", []string{"chevy"}, []string{"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Colorado", "Traverse", "Blazer", "Bolt", "Impala", "Trax", "Cruze", "Spark"}},
	{"Chrysler", nil, []string{"Pacifica", "300"}},
	{"Dodge", nil, []string{"Charger", "Challenger", "Durango", "Hornet"}},
	{"Fiat", nil, []string{"500", "500X"}},
	{"Ford", nil, []string{"F-150", "F-250", "F-350", "Mustang", "Explorer", "Escape", "Ranger", "Bronco", "Edge", "Expedition", "Maverick", "Focus", "Fusion", "Fiesta", "Transit"}},
	{"Genesis", nil, []string{"G70", "G80", "G90", "GV60", "GV70", "GV80"}},
	{"GMC", nil, []string{"Sierra", "Terrain", "Acadia", "Yukon", "Canyon", "Hummer EV"}},
	{"Honda", nil, []string{"Civic", "Accord", "CR-V", "Pilot", "Odyssey", "HR-V", "Ridgeline", "Fit", "Passport", "Insight"}},
	{"Hyundai", nil, []string{"Elantra", "Sonata", "Tucson", "Santa Fe", "Kona", "Palisade", "Ioniq 5", "Ioniq 6", "Venue", "Accent", "Santa Cruz"}},
	{"Infiniti", nil, []string{"Q50", "Q60", "QX50", "QX60", "QX80"}},
	{"Jaguar", nil, []string{"F-Pace", "E-Pace", "I-Pace", "XF", "XE", "F-Type"}},
	{"Jeep", nil, []string{"Wrangler", "Grand Cherokee", "Cherokee", "Compass", "Renegade", "Gladiator", "Grand Wagoneer", "Wagoneer"}},
	{"Kia", nil, []string{"Forte", "K5", "Sportage", "Telluride", "Sorento", "Seltos", "EV6", "EV9", "Soul", "Stinger", "Carnival", "Rio", "Niro"}},
	{"Land Rover", nil, []string{"Range Rover", "Range Rover Sport", "Defender", "Discovery", "Evoque"}},
	{"Lexus", nil, []string{"RX", "ES", "NX", "IS", "GX", "LX", "UX", "LC", "LS", "RC"}},
	{"Lincoln", nil, []string{"Navigator", "Aviator", "Corsair", "Nautilus"}},
	{"Lucid", nil, []string{"Air"}},
	{"Mazda", nil, []string{"Mazda3", "Mazda6", "CX-5", "CX-9", "CX-30", "CX-50", "CX-90", "MX-5"}},
	{"Mercedes-Benz", []string{"mercedes", "benz", "merc"}, []string{"A-Class", "C-Class", "E-Class", "S-Class", "CLA", "GLA", "GLB", "GLC", "GLE", "GLS", "AMG GT", "EQE", "EQS"}},
	{"Mini", nil, []string{"Cooper", "Countryman", "Clubman"}},
	{"Mitsubishi", nil, []string{"Outlander", "Outlander Sport", "Eclipse Cross", "Mirage"}},
	{"Nissan", nil, []string{"Altima", "Sentra", "Rogue", "Pathfinder", "Frontier", "Maxima", "Murano", "Titan", "Z", "Kicks", "Versa", "Armada", "Leaf"}},
	{"Polestar", nil, []string{"Polestar 2", "Polestar 3"}},
	{"Porsche", nil, []string{"911", "Cayenne", "Macan", "Taycan", "Panamera", "Boxster", "Cayman"}},
	{"Ram", nil, []string{"1500", "2500", "3500", "ProMaster"}},
	{"Rivian", nil, []string{"R1T", "R1S"}},
	{"Subaru", nil, []string{"Outback", "Forester", "Crosstrek", "Impreza", "WRX", "Legacy", "Ascent", "BRZ", "Solterra"}},
	{"Tesla", nil, []string{"Model 3", "Model Y", "Model S", "Model X", "Cybertruck"}},
	{"Toyota", nil, []string{"Camry", "Corolla", "RAV4", "Highlander", "Tacoma", "Tundra", "Prius", "4Runner", "Sienna", "Supra", "GR86", "Venza", "C-HR", "Sequoia", "Land Cruiser"}},
	{"Volkswagen", []string{"vw"}, []string{"Golf", "GTI", "Jetta", "Tiguan", "Atlas", "Passat", "Taos", "ID.4", "Arteon", "Beetle"}},
	{"Volvo", nil, []string{"XC40", "XC60", "XC90", "S60", "S90", "V60", "V90", "C40"}},
}

type modelName struct {
	lower, canonical string
}

var (
	aliasToMake   map[string]string      // lower alias or name -> canonical make
	modelsByMake  map[string][]modelName // canonical make -> models, longest first
	distinctModel []distinct             // models owned by exactly one make, sorted
	makeRe        *regexp.Regexp
)

type distinct struct {
	model modelName
	mk    string
}

func init() {
	aliasToMake = make(map[string]string)
	modelsByMake = make(map[string][]modelName)
	owners := make(map[string]int)

	var names []string
	for _, e := range catalog {
		for _, a := range append([]string{strings.ToLower(e.name)}, e.aliases...) {
			aliasToMake[a] = e.name
			names = append(names, a)
		}
		var ms []modelName
		for _, m := range e.models {
			ms = append(ms, modelName{strings.ToLower(m), m})
			owners[strings.ToLower(m)]++
		}
		sort.SliceStable(ms, func(i, j int) bool { return len(ms[i].lower) > len(ms[j].lower) })
		modelsByMake[e.name] = ms
	}

	for _, e := range catalog {
		for _, m := range modelsByMake[e.name] {
			if owners[m.lower] == 1 {
				distinctModel = append(distinctModel, distinct{m, e.name})
			}
		}
	}
	sort.SliceStable(distinctModel, func(i, j int) bool {
		return len(distinctModel[i].model.lower) > len(distinctModel[j].model.lower)
	})

	sort.SliceStable(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	makeRe = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)(?:'s)?\b`)
}

// CanonicalMake returns the catalog spelling of a make or alias.
func CanonicalMake(s string) (string, bool) {
	m, ok := aliasToMake[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// Makes returns the canonical make names in catalog order.
func Makes() []string {
	out := make([]string, len(catalog))
	for i, e := range catalog {
		out[i] = e.name
	}
	return out
}

// Models returns the known models of a canonical make.
func Models(mk string) []string {
	for _, e := range catalog {
		if e.name == mk {
			return append([]string(nil), e.models...)
		}
	}
	return nil
}
