package stats

import "strings"

// rareGoodsPremium is the fixed markup over buy price used to estimate the
// sell price of a rare good away from its origin market.
const rareGoodsPremium = 16000

// rareCommodities is the static set of rare goods, keyed by lower-cased
// symbol. Rares are sold at a single market with capped quantity, so the
// ordinary market aggregates are meaningless for them and get overridden.
// Never updated from upstream.
var rareCommodities = map[string]struct{}{
	"aepyornisegg":             {},
	"aganipperush":             {},
	"alacarakmoskinart":        {},
	"albinoquechuamammoth":     {},
	"altairianskin":            {},
	"anduligafireworks":        {},
	"anynacoffee":              {},
	"aroucaconventualsweets":   {},
	"azcancriformula42":        {},
	"bakedgreebles":            {},
	"bankiamphibiousleather":   {},
	"bastsnakegin":             {},
	"belalansrayleather":       {},
	"bluemilk":                 {},
	"burnhambiledistillate":    {},
	"cd75catcoffee":            {},
	"centaurimegagin":          {},
	"ceremonialheiketea":       {},
	"cetiaepyornisegg":         {},
	"cetirabbits":              {},
	"chameleoncloth":           {},
	"chateaudeaegaeon":         {},
	"cherbonesbloodcrystals":   {},
	"chieridanimarinepaste":    {},
	"coquimspongiformvictuals": {},
	"cromsilverfesh":           {},
	"crystallinespheres":       {},
	"damnacarapaces":           {},
	"deltaphoenicispalms":      {},
	"deuringastruffles":        {},
	"disomacorn":               {},
	"eleuthermals":             {},
	"eraninpearlwhisky":        {},
	"eshuumbrellas":            {},
	"esusekucaviar":            {},
	"ethgrezeteabuds":          {},
	"fujintea":                 {},
	"geawendancedust":          {},
	"gerasiangueuzebeer":       {},
	"giantirukamasnails":       {},
	"giantverrix":              {},
	"gilyasignatureweapons":    {},
	"gomanyauponcoffee":        {},
	"haidneblackbrew":          {},
	"havasupaidreamcatcher":    {},
	"helvetitjpearls":          {},
	"hip10175bushmeat":         {},
	"hip41181squid":            {},
	"hiporganophosphates":      {},
	"holvaduellingblades":      {},
	"honestypills":             {},
	"hr7221wheat":              {},
	"indibourbon":              {},
	"jaquesquinentianstill":    {},
	"jaradharrepuzzlebox":      {},
	"jarouarice":               {},
	"jotunmookah":              {},
	"kachiriginfilterleeches":  {},
	"kamitracigars":            {},
	"kamorinhistoricweapons":   {},
	"karetiicouture":           {},
	"karsukilocusts":           {},
	"kinagoviolins":            {},
	"konggaale":                {},
	"korrokungpellets":         {},
	"lavianbrandy":             {},
	"leestianeviljuice":        {},
	"livehecateseaworms":       {},
	"ltthypersweet":            {},
	"lyraeweed":                {},
	"masterchefs":              {},
	"mechucoshightea":          {},
	"medbstarlube":             {},
	"mokojingbeastfeast":       {},
	"momusbogspaniel":          {},
	"motronaexperiencejelly":   {},
	"mukusubiichitinos":        {},
	"mulachigiantfungus":       {},
	"neritusberries":           {},
	"ngadandarifireopals":      {},
	"ngunamodernantiques":      {},
	"njangarisaddles":          {},
	"noneuclidianexotanks":     {},
	"ochoengchillies":          {},
	"onionheadc":               {},
	"ophiuchiexinoartefacts":   {},
	"orrerianviciousbrew":      {},
	"pantaaprayersticks":       {},
	"pavoniseargrubs":          {},
	"personalgifts":            {},
	"rajukrumultistoves":       {},
	"rapabaosnakeskins":        {},
	"rusanioldsmokey":          {},
	"sanumadecorativemeat":     {},
	"saxonwine":                {},
	"shanscharisorchid":        {},
	"soontillrelics":           {},
	"sothiscrystallinegold":    {},
	"tanmarktranquiltea":       {},
	"taurichimes":              {},
	"terramaterbloodbores":     {},
	"thehuttonmug":             {},
	"thrutiscream":             {},
	"tiegfriessynthsilk":       {},
	"tiolcewaste2pasteunits":   {},
	"toxandjivirocide":         {},
	"uszaiantreegrub":          {},
	"utgaroarmillennialeggs":   {},
	"uzumokulowgwings":         {},
	"vherculisbodyrub":         {},
	"vidavantianlace":          {},
	"volkhabbeedrones":         {},
	"watersofshintara":         {},
	"wheemetewheatcakes":       {},
	"witchhaulkobebeef":        {},
	"wolffesh":                 {},
	"wulpahyperboresystems":    {},
	"wuthielokufroth":          {},
	"xihecompanions":           {},
	"yasokondileaf":            {},
	"zeesszeantglue":           {},
}

// IsRareCommodity reports whether a commodity symbol names a rare good.
func IsRareCommodity(name string) bool {
	_, ok := rareCommodities[strings.ToLower(name)]
	return ok
}
