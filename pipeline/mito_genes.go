package pipeline

// defaultMitoSymbols is the embedded human/mouse mitochondrial gene symbol
// lookup used when rna_quality_control.use_mito_default is set and no
// mito_prefix override is given. Matching is case-folded (see textmatch.go).
var defaultMitoSymbols = buildMitoSet([]string{
	"MT-ND1", "MT-ND2", "MT-ND3", "MT-ND4", "MT-ND4L", "MT-ND5", "MT-ND6",
	"MT-CO1", "MT-CO2", "MT-CO3", "MT-CYB", "MT-ATP6", "MT-ATP8",
	"mt-Nd1", "mt-Nd2", "mt-Nd3", "mt-Nd4", "mt-Nd4l", "mt-Nd5", "mt-Nd6",
	"mt-Co1", "mt-Co2", "mt-Co3", "mt-Cytb", "mt-Atp6", "mt-Atp8",
})

func buildMitoSet(symbols []string) map[string]bool {
	out := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		out[titleCaser.String(foldCaser.String(s))] = true
	}
	return out
}

func isDefaultMitoSymbol(symbol string) bool {
	return defaultMitoSymbols[titleCaser.String(foldCaser.String(symbol))]
}
