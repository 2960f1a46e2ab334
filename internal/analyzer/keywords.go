package analyzer

// restrictedKeywords maps risk category to its keyword list. Matching is
// hyphen-space flexible and multi-word phrases match with bounded proximity.
var restrictedKeywords = map[string][]string{
	"gambling": {
		"gambling", "betting", "casino", "sports betting", "sportsbook", "poker room",
		"online gambling", "slot machine", "roulette", "blackjack", "betting odds",
		"place your bets", "lottery tickets", "bookmaker",
	},
	"adult": {
		"adult content", "adult entertainment", "escort service", "xxx",
		"pornography", "webcam shows", "adult videos",
	},
	"child_pornography": {
		"child pornography", "underage content",
	},
	"weapons": {
		"firearms for sale", "buy guns", "ammunition", "assault rifle",
		"gun store", "weapons dealer", "explosives",
	},
	"drugs": {
		"buy cannabis", "marijuana delivery", "cocaine", "mdma", "psychedelics for sale",
		"research chemicals", "buy steroids",
	},
	"illegal_goods": {
		"stolen goods", "fake ids", "counterfeit currency", "black market",
	},
	"hacking": {
		"hacking services", "ddos for hire", "stolen credentials", "carding",
		"account takeover", "exploit kit",
	},
	"counterfeit": {
		"replica watches", "counterfeit goods", "knockoff", "fake designer",
		"replica handbags",
	},
	"crypto": {
		"cryptocurrency", "bitcoin", "ethereum", "crypto wallet", "token sale",
		"initial coin offering", "defi", "nft marketplace", "stablecoin",
	},
	"forex": {
		"forex trading", "foreign exchange trading", "cfd trading", "leverage trading",
		"binary options",
	},
	"securities": {
		"stock trading", "securities trading", "investment advisory", "brokerage account",
	},
	"money_transfer": {
		"money transfer", "remittance", "wire transfer service", "send money abroad",
	},
	"pharmacy": {
		"online pharmacy", "prescription drugs", "buy medication", "no prescription needed",
		"viagra", "controlled substances",
	},
	"alcohol": {
		"buy alcohol", "liquor delivery", "whiskey shop", "wine delivery",
	},
	"tobacco": {
		"cigarettes online", "buy tobacco", "vape shop", "e-cigarettes",
	},
}

// highRiskCategories are eligible for critical severity when corroborated and
// can trigger auto-fail rules.
var highRiskCategories = map[string]bool{
	"gambling":          true,
	"adult":             true,
	"child_pornography": true,
	"weapons":           true,
	"drugs":             true,
	"illegal_goods":     true,
	"hacking":           true,
	"counterfeit":       true,
}

// prohibitiveMarkers indicate the surrounding text forbids the matched
// activity rather than offering it.
var prohibitiveMarkers = []string{
	"we do not allow", "not allowed", "prohibited", "not permitted", "forbidden",
	"strictly prohibited", "is banned", "are banned", "will not be tolerated",
	"must not", "may not be used", "restricted activities", "acceptable use",
	"do not permit", "zero tolerance",
}

// promotionalMarkers indicate the matched activity is being offered or sold.
var promotionalMarkers = []string{
	"buy now", "shop now", "order now", "play now", "join today", "sign up today",
	"get started", "add to cart", "best prices", "free shipping", "limited offer",
	"buy", "purchase", "subscribe",
}

// dummyTextPatterns detect placeholder content left on unfinished sites.
var dummyTextPatterns = []string{
	`lorem ipsum`,
	`dolor sit amet`,
	`placeholder text`,
	`sample text here`,
	`your text here`,
	`coming soon`,
	`under construction`,
}
