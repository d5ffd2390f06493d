package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

type hashedComponent struct {
	Name                  string `json:"name"`
	Price                 string `json:"price"`
	Quantity              int    `json:"quantity"`
	SubmissionInformation any    `json:"submissionInformation"`
	AdditionalDisplay     string `json:"additionalDisplay"`
}

type hashedItem struct {
	Shop                  Shop              `json:"shop"`
	Name                  string            `json:"name"`
	SubmissionInformation any               `json:"submissionInformation"`
	Components            []hashedComponent `json:"components"`
}

// DuplicateHash derives the identity key used to merge a newly added item into an
// existing line. Two items hash equal when shop, name, submission information and
// components are equal; JSON key order inside payloads does not matter.
func DuplicateHash(it CartItem) (string, error) {
	h := hashedItem{
		Shop:       it.Shop,
		Name:       it.Name,
		Components: make([]hashedComponent, 0, len(it.Components)),
	}
	var err error
	if h.SubmissionInformation, err = canonical(it.SubmissionInformation); err != nil {
		return "", err
	}
	for _, c := range it.Components {
		hc := hashedComponent{
			Name:              c.Name,
			Price:             c.Price.String(),
			Quantity:          c.Quantity,
			AdditionalDisplay: c.AdditionalDisplay,
		}
		if hc.SubmissionInformation, err = canonical(c.SubmissionInformation); err != nil {
			return "", err
		}
		h.Components = append(h.Components, hc)
	}

	b, err := json.Marshal(h)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// canonical decodes raw so that re-encoding sorts object keys.
func canonical(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
