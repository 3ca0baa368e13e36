package operator

import "simfleet-svr/internal/sim"

type issuer struct {
	Name     string
	Country  string
	MCC      string
	MNC      string
	Platform sim.Provider
}

// Prefijos de emisor ICCID, "89" incluido. Gana el más largo.
var iccidIssuers = map[string]issuer{
	// Plataformas IoT que gestionamos
	"894450": {Name: "Things Mobile", Country: "GB", MCC: "234", MNC: "50", Platform: sim.ProviderThingsMobile},
	"894478": {Name: "Truphone", Country: "GB", MCC: "234", MNC: "25", Platform: sim.ProviderTruphone},
	"893327": {Name: "Phenix", Country: "FR", MCC: "208", MNC: "27", Platform: sim.ProviderPhenix},

	// Francia
	"893301": {Name: "Orange France", Country: "FR", MCC: "208", MNC: "01"},
	"893310": {Name: "SFR", Country: "FR", MCC: "208", MNC: "10"},
	"893315": {Name: "Free Mobile", Country: "FR", MCC: "208", MNC: "15"},
	"893320": {Name: "Bouygues Telecom", Country: "FR", MCC: "208", MNC: "20"},
	// Reino Unido
	"894410": {Name: "O2 UK", Country: "GB", MCC: "234", MNC: "10"},
	"894411": {Name: "Vodafone UK", Country: "GB", MCC: "234", MNC: "15"},
	"894412": {Name: "EE", Country: "GB", MCC: "234", MNC: "30"},
	"894420": {Name: "Three UK", Country: "GB", MCC: "234", MNC: "20"},
	// Italia
	"893901": {Name: "TIM", Country: "IT", MCC: "222", MNC: "01"},
	"893910": {Name: "Vodafone Italia", Country: "IT", MCC: "222", MNC: "10"},
	"893988": {Name: "WindTre", Country: "IT", MCC: "222", MNC: "88"},
	// España
	"893401": {Name: "Vodafone España", Country: "ES", MCC: "214", MNC: "01"},
	"893407": {Name: "Movistar", Country: "ES", MCC: "214", MNC: "07"},
	// Alemania
	"894901": {Name: "Telekom Deutschland", Country: "DE", MCC: "262", MNC: "01"},
	"894902": {Name: "Vodafone Deutschland", Country: "DE", MCC: "262", MNC: "02"},
	"894907": {Name: "O2 Deutschland", Country: "DE", MCC: "262", MNC: "07"},
	// Benelux
	"893108": {Name: "KPN", Country: "NL", MCC: "204", MNC: "08"},
	"893104": {Name: "Vodafone NL", Country: "NL", MCC: "204", MNC: "04"},
	"893201": {Name: "Proximus", Country: "BE", MCC: "206", MNC: "01"},
	// Norteamérica
	"8901260": {Name: "T-Mobile US", Country: "US", MCC: "310", MNC: "260"},
	"890141":  {Name: "AT&T", Country: "US", MCC: "310", MNC: "410"},
	"891480":  {Name: "Verizon", Country: "US", MCC: "311", MNC: "480"},
	// México
	"895202": {Name: "Telcel", Country: "MX", MCC: "334", MNC: "020"},
}

// Códigos de país E.164 → ISO 3166 alpha-2.
var callingCodes = map[string]string{
	"1": "US", "7": "RU",
	"20": "EG", "27": "ZA", "30": "GR", "31": "NL", "32": "BE", "33": "FR", "34": "ES",
	"36": "HU", "39": "IT", "40": "RO", "41": "CH", "43": "AT", "44": "GB", "45": "DK",
	"46": "SE", "47": "NO", "48": "PL", "49": "DE", "52": "MX", "55": "BR", "61": "AU",
	"81": "JP", "86": "CN", "90": "TR", "91": "IN",
	"212": "MA", "213": "DZ", "216": "TN", "351": "PT", "352": "LU", "353": "IE",
	"358": "FI", "420": "CZ", "421": "SK",
}

var mccCountries = map[string]string{
	"202": "GR", "204": "NL", "206": "BE", "208": "FR", "214": "ES", "216": "HU",
	"222": "IT", "226": "RO", "228": "CH", "232": "AT", "234": "GB", "235": "GB",
	"238": "DK", "240": "SE", "242": "NO", "244": "FI", "250": "RU", "260": "PL",
	"262": "DE", "268": "PT", "270": "LU", "272": "IE", "286": "TR", "302": "CA",
	"310": "US", "311": "US", "312": "US", "313": "US", "314": "US", "315": "US", "316": "US",
	"334": "MX", "404": "IN", "405": "IN", "440": "JP", "460": "CN", "505": "AU",
	"604": "MA", "603": "DZ", "605": "TN", "655": "ZA", "724": "BR",
}

// MCCs que usan MNC de 3 dígitos.
var threeDigitMNC = map[string]bool{
	"302": true, "310": true, "311": true, "312": true, "313": true, "314": true,
	"315": true, "316": true, "334": true, "338": true, "342": true, "344": true,
	"346": true, "348": true, "356": true, "358": true, "360": true, "365": true,
	"376": true, "708": true, "722": true, "732": true,
}

// MCC+MNC → nombre de red.
var networks = map[string]string{
	"20801": "Orange France", "20810": "SFR", "20815": "Free Mobile", "20820": "Bouygues Telecom",
	"20827": "Phenix",
	"23410": "O2 UK", "23415": "Vodafone UK", "23420": "Three UK", "23430": "EE", "23433": "EE",
	"23425": "Truphone", "23450": "Things Mobile",
	"22201": "TIM", "22210": "Vodafone Italia", "22288": "WindTre",
	"21401": "Vodafone España", "21407": "Movistar",
	"26201": "Telekom Deutschland", "26202": "Vodafone Deutschland", "26203": "O2 Deutschland", "26207": "O2 Deutschland",
	"20404": "Vodafone NL", "20408": "KPN", "20601": "Proximus",
	"310260": "T-Mobile US", "310410": "AT&T", "311480": "Verizon",
	"334020": "Telcel",
	"90128": "Vodafone IoT",
}

// Plataforma de gestión asociada a una red, cuando la red es la del proveedor.
var networkPlatforms = map[string]sim.Provider{
	"23425": sim.ProviderTruphone,
	"23450": sim.ProviderThingsMobile,
	"20827": sim.ProviderPhenix,
}
