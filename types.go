package main

import "composition-corrector/classifier"

// ClassifyResponse is the response payload for the /api/classify endpoint.
type ClassifyResponse struct {
	Words   []classifier.ClassifiedWord `json:"words"`
	Invalid []InvalidWord               `json:"invalid"`
}

// InvalidWord is a word of the request that did not pass validation.
type InvalidWord struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}
