package vision

// Rect is a bounding rectangle computed from polygon vertices, clamped to
// non-negative coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Block is one detected token or line with its bounding geometry.
type Block struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Result is the outcome of a single OCR pass over one image.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Blocks     []Block `json:"blocks"`
}

// Wire shapes for the text-detection API. The provider returns dynamically
// shaped JSON; parsing into explicit structs happens at this boundary and
// malformed payloads are rejected as transient errors.

type annotateRequest struct {
	Requests []annotateItem `json:"requests"`
}

type annotateItem struct {
	Image        imagePayload  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imagePayload struct {
	Content string `json:"content"` // base64-encoded image bytes
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateResponse struct {
	Responses []annotateResult `json:"responses"`
}

type annotateResult struct {
	TextAnnotations []textAnnotation `json:"textAnnotations"`
	Error           *apiStatus       `json:"error,omitempty"`
}

// textAnnotation is one detected text element. The first annotation in a
// response carries the full document text; the rest are individual tokens.
type textAnnotation struct {
	Description  string  `json:"description"`
	Confidence   float64 `json:"confidence,omitempty"`
	BoundingPoly poly    `json:"boundingPoly"`
}

type poly struct {
	Vertices []vertex `json:"vertices"`
}

type vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
