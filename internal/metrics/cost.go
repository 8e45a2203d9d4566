package metrics

// Static per-unit price table, used purely for reporting. Prices are USD and
// deliberately approximate; they track the public list prices of typical OCR
// and vision-language providers.
const (
	OCRCostPerCall            = 0.0015
	MultimodalCostPerImage    = 0.0025
	MultimodalCostPer1KTokens = 0.010

	// charsPerToken approximates tokens from text length.
	charsPerToken = 4

	// nominalTokensPerPage is assumed when no text length is known, e.g. for
	// the savings estimate in Snapshot.
	nominalTokensPerPage = 500
)

// Breakdown itemises the estimated cost of processing a document.
type Breakdown struct {
	Method           string  `json:"method"`
	ImageCount       int     `json:"image_count"`
	OCRCalls         int     `json:"ocr_calls"`
	MultimodalImages int     `json:"multimodal_images"`
	EstimatedTokens  int     `json:"estimated_tokens"`
	TotalCost        float64 `json:"total_cost_usd"`
}

// EstimateCost is a pure function computing the expected provider spend for
// imageCount pages with an average extracted-text length of avgTextLen
// characters, processed by the given method.
func EstimateCost(imageCount, avgTextLen int, method string) Breakdown {
	if imageCount < 0 {
		imageCount = 0
	}
	tokensPerPage := avgTextLen / charsPerToken
	if tokensPerPage <= 0 {
		tokensPerPage = nominalTokensPerPage
	}

	b := Breakdown{Method: method, ImageCount: imageCount}

	switch method {
	case "ocr_only", "hybrid_batch":
		b.OCRCalls = imageCount
	case "multimodal_fallback", "individual_fallback":
		// The OCR pass already ran before the pipeline escalated.
		b.OCRCalls = imageCount
		b.MultimodalImages = imageCount
		b.EstimatedTokens = tokensPerPage * imageCount
	default:
		b.MultimodalImages = imageCount
		b.EstimatedTokens = tokensPerPage * imageCount
	}

	b.TotalCost = float64(b.OCRCalls)*OCRCostPerCall +
		float64(b.MultimodalImages)*MultimodalCostPerImage +
		float64(b.EstimatedTokens)/1000*MultimodalCostPer1KTokens
	return b
}

// estimateSavings derives the aggregate spend avoided by requests that the
// cheap OCR path resolved instead of the multimodal path.
func estimateSavings(byMethod map[string]int64) float64 {
	cheapRequests := byMethod["ocr_only"] + byMethod["hybrid_batch"]
	perRequestDelta := MultimodalCostPerImage +
		float64(nominalTokensPerPage)/1000*MultimodalCostPer1KTokens -
		OCRCostPerCall
	return float64(cheapRequests) * perRequestDelta
}
